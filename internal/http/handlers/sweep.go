package handlers

import (
	"errors"
	"net/http"

	"github.com/surveyops/booking-sync/internal/reconcile"
	"github.com/surveyops/booking-sync/pkg/logging"
)

// SweepHandler triggers one reconciliation sweep. Authorization happens in
// middleware before this handler runs.
type SweepHandler struct {
	engine *reconcile.Engine
	logger *logging.Logger
}

func NewSweepHandler(engine *reconcile.Engine, logger *logging.Logger) *SweepHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SweepHandler{engine: engine, logger: logger}
}

// Handle processes POST /jobs/sweep.
func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Sweep(r.Context())
	if err != nil {
		resp := envelope{"ok": false, "error": err.Error()}
		var upstream *reconcile.UpstreamError
		if errors.As(err, &upstream) {
			resp["service"] = upstream.Service
			resp["status"] = upstream.Status
		}
		if report != nil {
			resp["report"] = report
		}
		h.logger.Error("sweep run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"ok": true, "report": report})
}
