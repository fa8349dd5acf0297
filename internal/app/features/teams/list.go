package teams

import (
	"context"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
)

type listResponse struct {
	Teams []teamView `json:"teams"`
}

// ServeList handles GET /api/teams.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	teams, err := h.Teams.ListForUser(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "teams: list failed", err, "Could not load teams.")
		return
	}
	out := make([]teamView, 0, len(teams))
	for _, t := range teams {
		v, err := h.view(ctx, t, cu.ID)
		if err != nil {
			h.ErrLog.LogError(w, r, "teams: resolve owner failed", err)
			return
		}
		out = append(out, v)
	}
	httpjson.Write(w, http.StatusOK, listResponse{Teams: out})
}
