package mailer

import (
	"context"
	"errors"
	"strings"
)

// ErrUnconfigured is returned when no provider API key is set.
var ErrUnconfigured = errors.New("mailer: no API key configured")

// Mailer sends one HTML email. Implementations must respect ctx deadlines;
// the dispatch pipeline budgets every send individually.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// EligibleRecipient restricts delivery to gmail.com addresses. This is a
// business rule of the campus rollout, not a technical constraint.
func EligibleRecipient(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), "@gmail.com")
}
