package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEmail is returned when an email fails the syntactic check
	// before any CRM call is made.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrLeadNotFound is returned after the lead lookup exhausts its retries.
	ErrLeadNotFound = errors.New("lead not found")
)

// UpstreamError is a dependency failure with enough context for an operator
// to tell which backend broke. These are never retried internally; the caller
// (webhook redelivery or the next sweep cycle) provides eventual success.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: status %d: %s", e.Service, e.Status, e.Body)
}
