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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/fraudgraph/pkg/logging"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/query"
)

// defaultTopK is the suspicious-patterns result size when top_k is not
// given.
const defaultTopK = 10

// Handlers holds the HTTP handlers for the fraudgraph service.
type Handlers struct {
	svc *Service
	log *logging.Logger
}

// NewHandlers creates the handler set for a service.
func NewHandlers(svc *Service, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{svc: svc, log: log}
}

// getOrCreateRequestID returns the request ID from the X-Request-ID
// header, generating one if absent.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// respondError maps the error taxonomy to HTTP status codes and writes
// the standard error payload.
func (h *Handlers) respondError(c *gin.Context, log *logging.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, graph.ErrValidation):
		status = http.StatusBadRequest
		code = "VALIDATION_FAILED"
	case errors.Is(err, graph.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, graph.ErrNoSnapshot), errors.Is(err, graph.ErrPrecondition):
		status = http.StatusConflict
		code = "NOT_READY"
	case errors.Is(err, graph.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
		code = "BACKEND_UNAVAILABLE"
	case errors.Is(err, graph.ErrGraphIntegrity):
		status = http.StatusUnprocessableEntity
		code = "GRAPH_INTEGRITY"
	default:
		status = http.StatusInternalServerError
		code = "INTERNAL_ERROR"
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Warn("request rejected", "status", status, "error", err)
	}

	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// engine returns the published query engine or writes the not-ready
// error response and returns false.
func (h *Handlers) engine(c *gin.Context, log *logging.Logger) (*query.Engine, bool) {
	eng, err := h.svc.Engine()
	if err != nil {
		h.respondError(c, log, err)
		return nil, false
	}
	return eng, true
}

// recordQuery instruments one query request.
func (h *Handlers) recordQuery(name string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	h.svc.Metrics().RecordQuery(name, outcome, time.Since(start))
}

// =============================================================================
// Pipeline handlers
// =============================================================================

// Build handles POST /v1/fraudgraph/build.
//
// Loads the dataset from the request's dataset_dir (or the configured
// directory) and runs the full pipeline.
func (h *Handlers) Build(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "Build")

	var req BuildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, log, fmt.Errorf("%w: %v", graph.ErrValidation, err))
			return
		}
	}

	resp, err := h.svc.LoadAndBuild(c.Request.Context(), req.DatasetDir)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /v1/fraudgraph/stats.
func (h *Handlers) Stats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "Stats")

	snap, err := h.svc.Snapshot()
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		SnapshotVersion: snap.Version(),
		Statistics:      snap.Statistics(),
	})
}

// Report handles GET /v1/fraudgraph/report.
func (h *Handlers) Report(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "Report")

	report, err := h.svc.Report()
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// =============================================================================
// Query handlers
// =============================================================================

// Profile handles GET /v1/fraudgraph/query/profile/:id.
func (h *Handlers) Profile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "Profile")
	start := time.Now()

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.Profile(c.Request.Context(), c.Param("id"))
	h.recordQuery("profile", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Connections handles GET /v1/fraudgraph/query/connections/:id.
//
// Query parameters:
//
//   - depth: traversal depth, 1 to 3. Default 1.
func (h *Handlers) Connections(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "Connections")
	start := time.Now()

	depth, err := intQuery(c, "depth", 0)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.Connections(c.Request.Context(), c.Param("id"), depth)
	h.recordQuery("connections", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FraudRisk handles GET /v1/fraudgraph/query/risk/:id.
func (h *Handlers) FraudRisk(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "FraudRisk")
	start := time.Now()

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.FraudRisk(c.Request.Context(), c.Param("id"))
	h.recordQuery("fraud_risk", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SharedDevices handles GET /v1/fraudgraph/query/shared_devices/:id.
func (h *Handlers) SharedDevices(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "SharedDevices")
	start := time.Now()

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.SharedDevices(c.Request.Context(), c.Param("id"))
	h.recordQuery("shared_devices", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// TransactionPaths handles GET /v1/fraudgraph/query/paths.
//
// Query parameters:
//
//   - source: source user ID. Required.
//   - target: target user ID. Required.
//   - max_depth: hop cap, 1 to 5. Default 3.
func (h *Handlers) TransactionPaths(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "TransactionPaths")
	start := time.Now()

	maxDepth, err := intQuery(c, "max_depth", 0)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.TransactionPaths(c.Request.Context(),
		c.Query("source"), c.Query("target"), maxDepth)
	h.recordQuery("transaction_paths", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CommunityMembership handles GET /v1/fraudgraph/query/community/:id.
func (h *Handlers) CommunityMembership(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "CommunityMembership")
	start := time.Now()

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.CommunityMembership(c.Request.Context(), c.Param("id"))
	h.recordQuery("community_membership", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SuspiciousPatterns handles GET /v1/fraudgraph/query/suspicious.
//
// Query parameters:
//
//   - top_k: result size. Default 10.
func (h *Handlers) SuspiciousPatterns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	log := h.log.With("request_id", requestID, "handler", "SuspiciousPatterns")
	start := time.Now()

	topK, err := intQuery(c, "top_k", defaultTopK)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	eng, ok := h.engine(c, log)
	if !ok {
		return
	}

	result, err := eng.SuspiciousPatterns(c.Request.Context(), topK)
	h.recordQuery("suspicious_patterns", start, err)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// =============================================================================
// Health handlers
// =============================================================================

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// Ready handles GET /ready. Returns 503 until the first successful build.
func (h *Handlers) Ready(c *gin.Context) {
	ready, version := h.svc.Ready()
	if !ready {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true, SnapshotVersion: version})
}

// intQuery parses an integer query parameter, returning def when absent.
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", graph.ErrValidation, name, raw)
	}
	return v, nil
}
