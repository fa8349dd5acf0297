package tasks

import (
	"context"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServeDelete handles DELETE /api/tasks/{id}. The task's creator and, for a
// team task, the team owner may delete it.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "tasks: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.loadVisible(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load for delete failed", err)
		return
	}

	allowed := t.OwnerID == cu.ID
	if !allowed && t.TeamID != nil {
		team, err := h.Teams.GetByID(ctx, *t.TeamID)
		if err != nil {
			h.ErrLog.LogError(w, r, "tasks: load team failed", apperr.Storage(err))
			return
		}
		owner, err := h.Teams.Owner(ctx, *team)
		if err != nil {
			h.ErrLog.LogError(w, r, "tasks: resolve team owner failed", apperr.Storage(err))
			return
		}
		allowed = owner == cu.ID
	}
	if !allowed {
		h.ErrLog.LogForbidden(w, r, "tasks: delete not allowed", nil, "Only the task's creator or the team owner can delete it.")
		return
	}

	if err := h.Tasks.Delete(ctx, t.ID); err != nil {
		h.ErrLog.LogError(w, r, "tasks: delete failed", apperr.Storage(err))
		return
	}
	h.Log.Info("task deleted", zap.String("task_id", t.ID.Hex()), zap.String("user_id", cu.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}
