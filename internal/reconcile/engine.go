package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surveyops/booking-sync/internal/booking"
	"github.com/surveyops/booking-sync/internal/calendly"
	"github.com/surveyops/booking-sync/internal/observability/metrics"
	"github.com/surveyops/booking-sync/internal/salesforce"
	"github.com/surveyops/booking-sync/pkg/logging"
)

// BookingService is the slice of the booking-provider API the engine uses.
type BookingService interface {
	Event(ctx context.Context, uri string) (*calendly.Event, error)
	Invitee(ctx context.Context, uri string) (*calendly.Invitee, error)
	ListEvents(ctx context.Context, minStart time.Time, status string) ([]calendly.Event, error)
	EventInvitees(ctx context.Context, eventURI string) ([]calendly.Invitee, error)
}

// CRM is the slice of the CRM API the engine uses: a lookup and a two-field
// overwrite.
type CRM interface {
	FindLeadByEmail(ctx context.Context, email string) (*salesforce.Lead, error)
	UpdateLeadSurvey(ctx context.Context, id, surveyDate string, paid bool) error
}

// Engine resolves bookings to CRM records and applies the idempotent
// two-field update. Both entry points (webhook and sweep) run through it.
type Engine struct {
	bookings BookingService
	crm      CRM
	resolver *LeadResolver
	logger   *logging.Logger
	metrics  *metrics.ReconcileMetrics

	sweepWindow      time.Duration
	sweepMaxInvitees int
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Bookings BookingService
	CRM      CRM
	Resolver *LeadResolver
	Logger   *logging.Logger
	Metrics  *metrics.ReconcileMetrics

	SweepWindow      time.Duration
	SweepMaxInvitees int
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewLeadResolver(cfg.CRM, ResolverConfig{Logger: logger, Metrics: cfg.Metrics})
	}
	sweepWindow := cfg.SweepWindow
	if sweepWindow <= 0 {
		sweepWindow = 24 * time.Hour
	}
	sweepMaxInvitees := cfg.SweepMaxInvitees
	if sweepMaxInvitees <= 0 {
		sweepMaxInvitees = 500
	}
	return &Engine{
		bookings:         cfg.Bookings,
		crm:              cfg.CRM,
		resolver:         resolver,
		logger:           logger,
		metrics:          cfg.Metrics,
		sweepWindow:      sweepWindow,
		sweepMaxInvitees: sweepMaxInvitees,
	}
}

// Result reports what one webhook delivery did. Booking is populated whenever
// it could be built, including on failure, so error responses can carry the
// context an operator needs to reconcile the record by hand.
type Result struct {
	Processed bool
	Reason    string
	Booking   *booking.Booking
	LeadID    string
}

// ProcessNotification drives the full webhook path: resolve booking details,
// resolve the lead, apply the update. Each external call is awaited before
// the next; webhook deliveries are independent, so the surrounding invocation
// model provides all the concurrency needed.
func (e *Engine) ProcessNotification(ctx context.Context, n *booking.Notification) (*Result, error) {
	if n.Ignored {
		e.logger.Info("ignoring booking notification", "event_type", n.EventType)
		e.metrics.ObserveWebhook("ignored")
		return &Result{Processed: false, Reason: "ignored_event_type"}, nil
	}

	b, err := e.resolveBooking(ctx, n)
	if err != nil {
		e.metrics.ObserveWebhook("fetch_error")
		return nil, err
	}

	lead, err := e.resolver.Resolve(ctx, b.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrLeadNotFound):
			e.metrics.ObserveWebhook("lead_not_found")
		case errors.Is(err, ErrInvalidEmail):
			e.metrics.ObserveWebhook("invalid_email")
		default:
			e.metrics.ObserveWebhook("crm_error")
		}
		return &Result{Booking: b}, err
	}

	if err := e.applyUpdate(ctx, lead.ID, b); err != nil {
		e.metrics.ObserveWebhook("patch_error")
		return &Result{Booking: b, LeadID: lead.ID}, err
	}

	e.logger.Info("booking reconciled",
		"email", b.Email,
		"lead_id", lead.ID,
		"survey_date", b.SurveyDate,
		"paid", b.Paid,
	)
	e.metrics.ObserveWebhook("reconciled")
	return &Result{Processed: true, Booking: b, LeadID: lead.ID}, nil
}

// resolveBooking fetches the event (always) and the invitee (referenced
// variant only), then folds payload and resource fields into one Booking.
func (e *Engine) resolveBooking(ctx context.Context, n *booking.Notification) (*booking.Booking, error) {
	ev, err := e.bookings.Event(ctx, n.EventURI)
	if err != nil {
		return nil, wrapBookingErr(err)
	}

	var inv *calendly.Invitee
	if n.InviteeURI != "" {
		inv, err = e.bookings.Invitee(ctx, n.InviteeURI)
		if err != nil {
			return nil, wrapBookingErr(err)
		}
	}

	return buildBooking(n, ev, inv), nil
}

// buildBooking merges the normalized notification with the fetched resources.
// The invitee resource wins over payload hints; the timezone defaults to UTC
// when absent everywhere.
func buildBooking(n *booking.Notification, ev *calendly.Event, inv *calendly.Invitee) *booking.Booking {
	b := &booking.Booking{
		Email:    n.Email,
		Name:     n.Name,
		Timezone: "UTC",
	}

	tz := ""
	questions := n.Questions
	payment := n.Payment
	if inv != nil {
		if inv.Email != "" {
			b.Email = inv.Email
		}
		if inv.Name != "" {
			b.Name = inv.Name
		}
		tz = inv.Timezone
		if len(inv.QuestionsAndAnswers) > 0 {
			questions = inv.QuestionsAndAnswers
		}
		if inv.Payment != nil {
			payment = inv.Payment
		}
	}
	if tz == "" {
		tz = ev.Timezone
	}
	if tz == "" {
		tz = n.Timezone
	}
	if tz != "" {
		b.Timezone = tz
	}

	if ev.StartTime != nil {
		utc := ev.StartTime.UTC()
		b.StartTimeUTC = &utc
		b.SurveyDate = booking.SurveyDateFor(&utc)
		b.LocalTime = booking.LocalTimeFor(&utc, b.Timezone)
	}

	b.Paid = booking.PaymentComplete(payment, questions)
	if payment != nil {
		b.Amount = payment.Amount
		b.Currency = payment.Currency
	}
	return b
}

// applyUpdate overwrites the two managed fields. Applying the same booking to
// the same record twice produces the same final state; redelivered webhooks
// and overlapping sweep runs converge rather than corrupt.
func (e *Engine) applyUpdate(ctx context.Context, leadID string, b *booking.Booking) error {
	if err := e.crm.UpdateLeadSurvey(ctx, leadID, b.SurveyDate, b.Paid); err != nil {
		var apiErr *salesforce.APIError
		if errors.As(err, &apiErr) {
			return &UpstreamError{Service: "crm-patch", Status: apiErr.Status, Body: apiErr.Body}
		}
		return fmt.Errorf("apply update: %w", err)
	}
	return nil
}

func wrapBookingErr(err error) error {
	var apiErr *calendly.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Service: "booking", Status: apiErr.Status, Body: apiErr.Body}
	}
	return fmt.Errorf("booking fetch: %w", err)
}
