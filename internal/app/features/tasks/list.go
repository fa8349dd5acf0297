package tasks

import (
	"context"
	"fmt"
	"net/http"

	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
)

type listResponse struct {
	Tasks []taskView `json:"tasks"`
}

func parseScope(s string) (taskstore.Scope, error) {
	switch taskstore.Scope(s) {
	case "", taskstore.ScopeAll:
		return taskstore.ScopeAll, nil
	case taskstore.ScopePersonal, taskstore.ScopeTeam:
		return taskstore.Scope(s), nil
	}
	return "", fmt.Errorf("%w: scope must be personal, team or all", apperr.ErrValidation)
}

// ServeList handles GET /api/tasks?scope=personal|team|all&done=true|false.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "tasks: no user in context", nil)
		return
	}

	scope, err := parseScope(query.Get(r, "scope"))
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: bad scope", err)
		return
	}
	done, err := inputval.Bool("done", query.Get(r, "done"))
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: bad done filter", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	teamIDs, err := h.Teams.TeamIDs(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "tasks: load teams failed", err, "Could not load tasks.")
		return
	}
	ts, err := h.Tasks.List(ctx, taskstore.ListFilter{
		UserID:  cu.ID,
		TeamIDs: teamIDs,
		Scope:   scope,
		Done:    done,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "tasks: list failed", err, "Could not load tasks.")
		return
	}
	views, err := h.views(ctx, ts)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load team names failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, listResponse{Tasks: views})
}
