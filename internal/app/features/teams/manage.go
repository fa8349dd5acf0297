package teams

import (
	"context"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type tokenResponse struct {
	JoinToken string `json:"join_token"`
}

// ServeLeave handles POST /api/teams/{id}/leave.
//
// Assignments of the leaving member are cleared. An explicit owner who
// leaves hands ownership to the earliest remaining member; the last member
// leaving deletes the team with its tasks.
func (h *Handler) ServeLeave(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	team, err := h.loadMemberTeam(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: load for leave failed", err)
		return
	}
	if _, err := h.Teams.Leave(ctx, team.ID, cu.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "teams: leave failed", err, "Could not leave the team.")
		return
	}
	log := h.Log.With(zap.String("team_id", team.ID.Hex()), zap.String("user_id", cu.ID.Hex()))

	if _, err := h.Tasks.UnassignMember(ctx, team.ID, cu.ID); err != nil {
		log.Warn("clear assignments after leave failed", zap.Error(err))
	}
	if team.OwnerID != nil && *team.OwnerID == cu.ID {
		if err := h.Teams.ClearOwner(ctx, team.ID); err != nil {
			log.Warn("clear owner after leave failed", zap.Error(err))
		}
	}

	remaining, err := h.Teams.MemberIDs(ctx, team.ID)
	if err != nil {
		log.Warn("count members after leave failed", zap.Error(err))
	} else if len(remaining) == 0 {
		if err := h.Teams.Delete(ctx, team.ID, h.Tasks); err != nil {
			log.Warn("delete empty team failed", zap.Error(err))
		} else {
			log.Info("empty team deleted")
		}
	}

	log.Info("team left")
	w.WriteHeader(http.StatusNoContent)
}

// ServeRotateToken handles POST /api/teams/{id}/token. Owner only.
func (h *Handler) ServeRotateToken(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	team, err := h.requireOwner(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: rotate token denied", err)
		return
	}
	token, err := h.Teams.RotateToken(ctx, team.ID)
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: rotate token failed", apperr.Storage(err))
		return
	}
	h.Log.Info("team token rotated", zap.String("team_id", team.ID.Hex()))
	httpjson.Write(w, http.StatusOK, tokenResponse{JoinToken: token})
}

// ServeDelete handles DELETE /api/teams/{id}. Owner only; memberships and
// team tasks go with the team.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	team, err := h.requireOwner(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: delete denied", err)
		return
	}
	if err := h.Teams.Delete(ctx, team.ID, h.Tasks); err != nil {
		h.ErrLog.LogError(w, r, "teams: delete failed", apperr.Storage(err))
		return
	}
	h.Log.Info("team deleted", zap.String("team_id", team.ID.Hex()), zap.String("user_id", cu.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}
