// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// Retry defaults for transient backend errors.
const (
	defaultMaxRetries     = 5
	defaultRetryBaseDelay = 100 * time.Millisecond
)

// retryable reports whether a backend error is worth another attempt.
// Logical errors (validation, not-found, precondition) and context
// cancellation are never retried.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, graph.ErrValidation),
		errors.Is(err, graph.ErrNotFound),
		errors.Is(err, graph.ErrGraphIntegrity),
		errors.Is(err, graph.ErrPrecondition),
		errors.Is(err, graph.ErrNoSnapshot):
		return false
	case errors.Is(err, badger.ErrKeyNotFound):
		return false
	default:
		return true
	}
}

// withRetry runs fn with bounded exponential backoff.
//
// Description:
//
//	Runs fn up to attempts times, sleeping base, 2*base, 4*base ... between
//	tries. Non-retryable errors abort immediately and pass through
//	unchanged. Exhausting all attempts wraps the last error in
//	graph.ErrBackendUnavailable so callers can distinguish "the backend is
//	down" from "the query was wrong".
//
// Inputs:
//
//	ctx - Cancels the backoff sleep.
//	log - Logger for per-attempt warnings.
//	attempts - Attempt cap, >= 1.
//	base - Initial backoff delay.
//	op - Operation name for logging.
//	fn - The backend operation.
//
// Outputs:
//
//	error - nil on success; the original error if non-retryable; a
//	        graph.ErrBackendUnavailable wrap after exhaustion.
func withRetry(ctx context.Context, log *slog.Logger, attempts int, base time.Duration, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		log.Warn("transient backend error, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", graph.ErrBackendUnavailable, op, attempts, err)
}
