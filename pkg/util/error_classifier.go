package util

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// IsTransientError classifies an error as transient (expected during
// cancellation, reconnects, or network blips; safe to keep quiet) or not
// (worth an operator-visible log line).
// Returns: (isTransient, errorKind).
func IsTransientError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Aborts are the normal byproduct of superseded or torn-down requests.
	if errors.Is(err, context.Canceled) {
		return true, "aborted"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "i/o timeout"):
		return true, "connection_error"
	case strings.Contains(errStr, "duplicate key"):
		return false, "duplicate_key"
	}

	return false, "unknown_error"
}
