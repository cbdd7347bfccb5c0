package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/surveyops/booking-sync/internal/booking"
	"github.com/surveyops/booking-sync/internal/calendly"
)

// SweepReport aggregates one reconciliation run. The sweep never fails the
// whole run for one bad invitee; failures are counted here instead.
type SweepReport struct {
	RunID       string `json:"run_id"`
	Processed   int    `json:"processed"`
	Skipped     int    `json:"skipped"`
	Errors      int    `json:"errors"`
	TotalEvents int    `json:"totalEvents"`
}

// Sweep lists the trailing window of active events and reconciles every
// invitee with a non-empty email, skipping leads whose target fields are
// already set. Events and invitees are processed sequentially to bound CRM
// query rate; the invitee cap and the context deadline bound total duration.
func (e *Engine) Sweep(ctx context.Context) (*SweepReport, error) {
	started := time.Now()
	report := &SweepReport{RunID: uuid.NewString()}

	minStart := time.Now().UTC().Add(-e.sweepWindow)
	events, err := e.bookings.ListEvents(ctx, minStart, "active")
	if err != nil {
		return report, wrapBookingErr(err)
	}
	report.TotalEvents = len(events)

	visited := 0
	for i := range events {
		ev := &events[i]
		invitees, err := e.bookings.EventInvitees(ctx, ev.URI)
		if err != nil {
			e.logger.Error("sweep: list invitees failed", "run_id", report.RunID, "event", ev.URI, "error", err)
			report.Errors++
			e.metrics.ObserveSweepInvitee("error")
			continue
		}
		for j := range invitees {
			inv := &invitees[j]
			if inv.Email == "" {
				continue
			}
			if ctx.Err() != nil {
				e.logger.Warn("sweep halted by context", "run_id", report.RunID, "visited", visited)
				e.metrics.ObserveSweepDuration(time.Since(started).Seconds())
				return report, nil
			}
			if visited >= e.sweepMaxInvitees {
				e.logger.Warn("sweep invitee cap reached", "run_id", report.RunID, "cap", e.sweepMaxInvitees)
				e.metrics.ObserveSweepDuration(time.Since(started).Seconds())
				return report, nil
			}
			visited++
			e.sweepOne(ctx, report, ev, inv)
		}
	}

	e.logger.Info("sweep completed",
		"run_id", report.RunID,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"total_events", report.TotalEvents,
	)
	e.metrics.ObserveSweepDuration(time.Since(started).Seconds())
	return report, nil
}

func (e *Engine) sweepOne(ctx context.Context, report *SweepReport, ev *calendly.Event, inv *calendly.Invitee) {
	lead, err := e.resolver.Resolve(ctx, inv.Email)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) || errors.Is(err, ErrInvalidEmail) {
			e.logger.Info("sweep: no lead for invitee", "run_id", report.RunID, "email", inv.Email, "error", err)
		} else {
			e.logger.Error("sweep: lead lookup failed", "run_id", report.RunID, "email", inv.Email, "error", err)
		}
		report.Errors++
		e.metrics.ObserveSweepInvitee("error")
		return
	}

	// Short-circuit leads the webhook path already handled.
	if lead.SurveyScheduled != "" && lead.SurveyPaymentComplete {
		report.Skipped++
		e.metrics.ObserveSweepInvitee("skipped")
		return
	}

	b := buildBooking(&booking.Notification{Email: inv.Email}, ev, inv)
	if err := e.applyUpdate(ctx, lead.ID, b); err != nil {
		e.logger.Error("sweep: patch failed", "run_id", report.RunID, "email", inv.Email, "lead_id", lead.ID, "error", err)
		report.Errors++
		e.metrics.ObserveSweepInvitee("error")
		return
	}

	report.Processed++
	e.metrics.ObserveSweepInvitee("processed")
}
