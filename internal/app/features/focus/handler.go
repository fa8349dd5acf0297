package focus

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	focusstore "github.com/dalemusser/focushub/internal/app/store/focus"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the current user's daily focus note.
type Handler struct {
	Focus  *focusstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(focus *focusstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Focus: focus, ErrLog: errLog, Log: logger}
}

type focusResponse struct {
	Text  string     `json:"text"`
	IsSet bool       `json:"is_set"`
	SetAt *time.Time `json:"set_at,omitempty"`
}

type focusRequest struct {
	Text string `json:"text"`
}

// ServeGet handles GET /api/focus.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "focus: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, found, err := h.Focus.Latest(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "focus: load latest failed", err, "Could not load your focus.")
		return
	}
	if !found {
		httpjson.Write(w, http.StatusOK, focusResponse{Text: digest.FocusNotSet})
		return
	}
	setAt := f.CreatedAt
	httpjson.Write(w, http.StatusOK, focusResponse{Text: f.Text, IsSet: true, SetAt: &setAt})
}

// ServePut handles PUT /api/focus. Each write appends a new entry; the
// newest one is the current focus.
func (h *Handler) ServePut(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "focus: no user in context", nil)
		return
	}

	var req focusRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "focus: bad body", err, err.Error())
		return
	}
	text, err := inputval.Text("text", req.Text, inputval.MaxFocus)
	if err != nil {
		h.ErrLog.LogError(w, r, "focus: invalid text", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f, err := h.Focus.Set(ctx, cu.ID, text)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "focus: save failed", err, "Could not save your focus.")
		return
	}
	h.Log.Debug("focus updated", zap.String("user_id", cu.ID.Hex()))
	httpjson.Write(w, http.StatusOK, focusResponse{Text: f.Text, IsSet: true, SetAt: &f.CreatedAt})
}
