package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/surveyops/booking-sync/internal/booking"
	"github.com/surveyops/booking-sync/internal/reconcile"
	"github.com/surveyops/booking-sync/pkg/logging"
)

// WebhookHandler accepts inbound booking notifications and drives them
// through the reconciliation engine.
type WebhookHandler struct {
	engine *reconcile.Engine
	logger *logging.Logger
}

func NewWebhookHandler(engine *reconcile.Engine, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{engine: engine, logger: logger}
}

// Handle processes POST /webhooks/calendly. The lead lookup may block for up
// to 30 seconds of cumulative backoff, so the server's write timeout must
// leave room for it.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{"ok": false, "error": "unreadable body"})
		return
	}

	n, err := booking.Normalize(body)
	if err != nil {
		h.logger.Warn("webhook payload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, envelope{"ok": false, "error": err.Error()})
		return
	}

	res, err := h.engine.ProcessNotification(r.Context(), n)
	if err != nil {
		h.respondError(w, res, err)
		return
	}

	if !res.Processed {
		writeJSON(w, http.StatusOK, envelope{"ok": true, "processed": false, "reason": res.Reason})
		return
	}

	resp := envelope{"ok": true, "processed": true, "lead_id": res.LeadID}
	addBookingContext(resp, res.Booking)
	writeJSON(w, http.StatusOK, resp)
}

// respondError maps engine failures onto the response taxonomy. Every failure
// body carries the computed booking context so an operator can reconcile the
// record by hand once automated retry is exhausted.
func (h *WebhookHandler) respondError(w http.ResponseWriter, res *reconcile.Result, err error) {
	resp := envelope{"ok": false, "error": err.Error(), "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if res != nil {
		addBookingContext(resp, res.Booking)
	}

	var upstream *reconcile.UpstreamError
	switch {
	case errors.Is(err, reconcile.ErrInvalidEmail):
		h.logger.Warn("webhook rejected invalid email", "error", err)
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, reconcile.ErrLeadNotFound):
		h.logger.Warn("no lead matched booking", "error", err)
		writeJSON(w, http.StatusNotFound, resp)
	case errors.As(err, &upstream):
		h.logger.Error("upstream failure", "service", upstream.Service, "status", upstream.Status, "body", upstream.Body)
		resp["service"] = upstream.Service
		resp["status"] = upstream.Status
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		h.logger.Error("webhook processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func addBookingContext(resp envelope, b *booking.Booking) {
	if b == nil {
		return
	}
	resp["email"] = b.Email
	resp["survey_date"] = b.SurveyDate
	resp["paid"] = b.Paid
	resp["timezone"] = b.Timezone
	if b.StartTimeUTC != nil {
		resp["start_time_utc"] = b.StartTimeUTC.Format(time.RFC3339)
	}
	if b.LocalTime != "" {
		resp["local_time"] = b.LocalTime
	}
}
