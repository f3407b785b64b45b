// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fraudgraph

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the fraudgraph endpoints onto a router group.
//
// Routes registered (relative to the group):
//
//	POST /build                        - load a dataset and run the pipeline
//	GET  /stats                        - graph statistics
//	GET  /report                       - fraud report for the current build
//	GET  /query/profile/:id            - user profile
//	GET  /query/connections/:id        - neighbors within depth hops
//	GET  /query/risk/:id               - risk score with signal breakdown
//	GET  /query/shared_devices/:id     - users sharing devices with a user
//	GET  /query/paths                  - transaction paths between two users
//	GET  /query/community/:id          - community membership
//	GET  /query/suspicious             - top-k suspicious users
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/build", h.Build)
	rg.GET("/stats", h.Stats)
	rg.GET("/report", h.Report)

	q := rg.Group("/query")
	{
		q.GET("/profile/:id", h.Profile)
		q.GET("/connections/:id", h.Connections)
		q.GET("/risk/:id", h.FraudRisk)
		q.GET("/shared_devices/:id", h.SharedDevices)
		q.GET("/paths", h.TransactionPaths)
		q.GET("/community/:id", h.CommunityMembership)
		q.GET("/suspicious", h.SuspiciousPatterns)
	}
}
