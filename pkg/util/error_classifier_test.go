package util

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"canceled", context.Canceled, true, "aborted"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"net timeout", &net.DNSError{Err: "timed out", IsTimeout: true}, true, "network_timeout"},
		{"net error", &net.DNSError{Err: "no such host"}, true, "network_error"},
		{"conn reset", errors.New("read tcp: connection reset by peer"), true, "connection_error"},
		{"conn refused", errors.New("dial tcp: connection refused"), true, "connection_error"},
		{"no rows", pgx.ErrNoRows, false, "not_found"},
		{"duplicate", errors.New("duplicate key value violates unique constraint"), false, "duplicate_key"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transient, kind := IsTransientError(tc.err)
			assert.Equal(t, tc.transient, transient)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestIsTransientError_WrappedErrors(t *testing.T) {
	err := errors.Join(errors.New("fetch notifications"), context.Canceled)
	transient, kind := IsTransientError(err)
	assert.True(t, transient)
	assert.Equal(t, "aborted", kind)
}
