package teams

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type createRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	Token string `json:"token"`
}

type joinResponse struct {
	Team   teamView `json:"team"`
	Joined bool     `json:"joined"`
}

// ServeCreate handles POST /api/teams. The creator becomes the explicit
// owner and first member.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	var req createRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "teams: bad create body", err, err.Error())
		return
	}
	name, err := inputval.Text("name", req.Name, inputval.MaxTeamName)
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: invalid name", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team, err := h.Teams.Create(ctx, name, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "teams: create failed", err, "Could not create the team.")
		return
	}
	h.Log.Info("team created", zap.String("team_id", team.ID.Hex()), zap.String("owner_id", cu.ID.Hex()))
	httpjson.Write(w, http.StatusCreated, teamView{Team: team, OwnerID: &cu.ID, IsOwner: true})
}

// ServeJoin handles POST /api/teams/join. Joining a team twice is not an
// error; joined reports whether a membership was created.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "teams: no user in context", nil)
		return
	}

	var req joinRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "teams: bad join body", err, err.Error())
		return
	}
	token, err := inputval.Token("token", req.Token)
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: invalid token", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team, joined, err := h.Teams.Join(ctx, token, cu.ID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.LogNotFound(w, r, "teams: unknown join token", "No team uses this invite.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "teams: join failed", err, "Could not join the team.")
		return
	}
	v, err := h.view(ctx, *team, cu.ID)
	if err != nil {
		h.ErrLog.LogError(w, r, "teams: resolve owner failed", err)
		return
	}
	if joined {
		h.Log.Info("team joined", zap.String("team_id", team.ID.Hex()), zap.String("user_id", cu.ID.Hex()))
	}
	httpjson.Write(w, http.StatusOK, joinResponse{Team: v, Joined: joined})
}
