package notifications

import (
	"context"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.uber.org/zap"
)

type settingsResponse struct {
	models.NotificationPreference
	State dispatch.State `json:"state"`
}

// settingsRequest is a partial update; absent fields keep their value.
type settingsRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalHours   *int  `json:"interval_hours"`
	StartHour       *int  `json:"start_hour"`
	EndHour         *int  `json:"end_hour"`
	TZOffsetMinutes *int  `json:"tz_offset_minutes"`
}

func (req settingsRequest) apply(p *models.NotificationPreference) {
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	if req.IntervalHours != nil {
		p.IntervalHours = *req.IntervalHours
	}
	if req.StartHour != nil {
		p.StartHour = *req.StartHour
	}
	if req.EndHour != nil {
		p.EndHour = *req.EndHour
	}
	if req.TZOffsetMinutes != nil {
		p.TZOffsetMinutes = *req.TZOffsetMinutes
	}
}

// ServeGetSettings handles GET /api/notifications/settings. Users who never
// saved settings get the defaults.
func (h *Handler) ServeGetSettings(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "notifications: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Prefs.Get(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: load settings failed", err, "Could not load notification settings.")
		return
	}
	httpjson.Write(w, http.StatusOK, settingsResponse{NotificationPreference: p, State: dispatch.Evaluate(p, h.now())})
}

// ServePutSettings handles PUT /api/notifications/settings. Values are
// clamped into range; a write with enabled=true clears last_sent_at so the
// next eligible window sends right away.
func (h *Handler) ServePutSettings(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "notifications: no user in context", nil)
		return
	}

	var req settingsRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "notifications: bad settings body", err, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Prefs.Get(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: load settings failed", err, "Could not save notification settings.")
		return
	}
	req.apply(&p)

	saved, err := h.Prefs.Save(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: save settings failed", err, "Could not save notification settings.")
		return
	}
	h.Log.Info("notification settings saved",
		zap.String("user_id", cu.ID.Hex()),
		zap.Bool("enabled", saved.Enabled),
		zap.Int("interval_hours", saved.IntervalHours))
	httpjson.Write(w, http.StatusOK, settingsResponse{NotificationPreference: saved, State: dispatch.Evaluate(saved, h.now())})
}
