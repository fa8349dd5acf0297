package me

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the current user's profile.
type Handler struct {
	Users  *userstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(users *userstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, ErrLog: errLog, Log: logger}
}

// ServeMe handles GET /api/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "me: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogError(w, r, "me: load user failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}
