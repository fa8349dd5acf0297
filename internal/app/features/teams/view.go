package teams

import (
	"context"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type detailResponse struct {
	teamView
	Members []memberView `json:"members"`
}

// ServeView handles GET /api/teams/{id}. Members are listed in join order.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team, err := h.loadMemberTeam(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: load failed", err)
		return
	}
	v, err := h.view(ctx, *team, cu.ID)
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: resolve owner failed", err)
		return
	}

	ms, err := h.Teams.Members(ctx, team.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "teams: load members failed", err, "Could not load team members.")
		return
	}
	ids := make([]primitive.ObjectID, len(ms))
	for i, m := range ms {
		ids[i] = m.UserID
	}
	users, err := h.Users.ListByIDs(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "teams: load member users failed", err, "Could not load team members.")
		return
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]memberView, 0, len(ms))
	for _, m := range ms {
		u := byID[m.UserID]
		members = append(members, memberView{
			UserID:      m.UserID,
			Username:    u.Username,
			DisplayName: u.DisplayName(),
			JoinedAt:    m.JoinedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, detailResponse{teamView: v, Members: members})
}
