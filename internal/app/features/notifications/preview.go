package notifications

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	notifylogstore "github.com/dalemusser/focushub/internal/app/store/notifylog"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// maxLogLimit caps GET /api/notifications/log?limit=.
const maxLogLimit = 200

type previewResponse struct {
	Text string `json:"text"`
}

type logResponse struct {
	Entries []models.NotificationLog `json:"entries"`
}

type testResponse struct {
	Sent bool `json:"sent"`
}

// ServePreview handles GET /api/notifications/preview. It renders the digest
// the user would receive now, in their saved offset, without sending it.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "notifications: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Prefs.Get(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: load settings failed", err, "Could not build the digest.")
		return
	}
	text, err := h.Builder.Build(ctx, cu.ID, h.now(), p.TZOffsetMinutes)
	if err != nil {
		h.ErrLog.LogError(w, r, "notifications: build preview failed", apperr.Storage(err))
		return
	}
	httpjson.Write(w, http.StatusOK, previewResponse{Text: text})
}

// ServeLog handles GET /api/notifications/log?limit=N.
func (h *Handler) ServeLog(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "notifications: no user in context", nil)
		return
	}

	limit := notifylogstore.DefaultRecent
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.ErrLog.LogBadRequest(w, r, "notifications: bad log limit", err, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	entries, err := h.Logs.Recent(ctx, cu.ID, limit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: load log failed", err, "Could not load the notification log.")
		return
	}
	httpjson.Write(w, http.StatusOK, logResponse{Entries: entries})
}

// ServeTest handles POST /api/notifications/test. It sends the current digest
// immediately, outside the interval gate, and leaves last_sent_at alone.
// A transport failure is reported as 502 and recorded in the log.
func (h *Handler) ServeTest(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "notifications: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.Prefs.Get(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notifications: load settings failed", err, "Could not send the digest.")
		return
	}
	if err := h.Engine.SendNow(ctx, p); err != nil {
		if !errors.Is(err, apperr.ErrTransport) {
			err = apperr.Storage(err)
		}
		h.ErrLog.LogError(w, r, "notifications: test send failed", err)
		return
	}
	h.Log.Info("test digest sent", zap.String("user_id", cu.ID.Hex()))
	httpjson.Write(w, http.StatusOK, testResponse{Sent: true})
}
