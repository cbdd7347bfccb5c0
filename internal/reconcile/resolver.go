package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/surveyops/booking-sync/internal/observability/metrics"
	"github.com/surveyops/booking-sync/internal/salesforce"
	"github.com/surveyops/booking-sync/pkg/logging"
)

// emailPattern is a deliberately shallow local@domain.tld check. Anything the
// CRM itself would accept passes; the check only exists to fail fast on
// garbage before spending retries on it.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s.]+$`)

// LeadFinder looks a lead up by exact email match, returning nil when the
// query succeeds but matches nothing.
type LeadFinder interface {
	FindLeadByEmail(ctx context.Context, email string) (*salesforce.Lead, error)
}

// LeadResolver absorbs CRM indexing lag: a record created moments ago may not
// be visible to the query endpoint yet. It retries "zero results" with
// exponential backoff but treats a failing query call as terminal, since a
// broken backend does not self-resolve on this timescale.
type LeadResolver struct {
	finder      LeadFinder
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *logging.Logger
	metrics     *metrics.ReconcileMetrics
}

// ResolverConfig tunes the retry policy. Sleep is injectable so tests can
// substitute a zero-delay clock and assert attempt counts.
type ResolverConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *logging.Logger
	Metrics     *metrics.ReconcileMetrics
}

func NewLeadResolver(finder LeadFinder, cfg ResolverConfig) *LeadResolver {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadResolver{
		finder:      finder,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleep,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// Resolve returns the most recently created lead matching email, retrying
// while the CRM index catches up. The delay after attempt n is
// baseDelay * 2^(n-1), so defaults wait 2s, 4s, 8s and 16s between the five
// attempts. Exhaustion returns ErrLeadNotFound.
func (r *LeadResolver) Resolve(ctx context.Context, email string) (*salesforce.Lead, error) {
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lead, err := r.finder.FindLeadByEmail(ctx, email)
		if err != nil {
			var apiErr *salesforce.APIError
			if errors.As(err, &apiErr) {
				return nil, &UpstreamError{Service: "crm-query", Status: apiErr.Status, Body: apiErr.Body}
			}
			return nil, fmt.Errorf("lead lookup: %w", err)
		}
		if lead != nil {
			r.metrics.ObserveLeadLookupAttempts(attempt)
			return lead, nil
		}
		if attempt < r.maxAttempts {
			delay := r.baseDelay << (attempt - 1)
			r.logger.Info("lead not indexed yet, backing off",
				"email", email,
				"attempt", attempt,
				"delay", delay.String(),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	r.metrics.ObserveLeadLookupAttempts(r.maxAttempts)
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrLeadNotFound, email, r.maxAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
