package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.uber.org/zap"
)

type createRequest struct {
	Title      string     `json:"title"`
	DueAt      *time.Time `json:"due_at"`
	TeamID     *string    `json:"team_id"`
	AssigneeID *string    `json:"assignee_id"`
}

// ServeCreate handles POST /api/tasks.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "tasks: no user in context", nil)
		return
	}

	var req createRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "tasks: bad create body", err, err.Error())
		return
	}
	title, err := inputval.Text("title", req.Title, inputval.MaxTitle)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: invalid title", err)
		return
	}
	teamID, err := inputval.OptionalObjectID("team_id", req.TeamID)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: invalid team id", err)
		return
	}
	assigneeID, err := inputval.OptionalObjectID("assignee_id", req.AssigneeID)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: invalid assignee id", err)
		return
	}
	if assigneeID != nil && teamID == nil {
		h.ErrLog.LogError(w, r, "tasks: assignee on personal task",
			fmt.Errorf("%w: only team tasks can have an assignee", apperr.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if teamID != nil {
		member, err := h.Teams.IsMember(ctx, *teamID, cu.ID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "tasks: membership check failed", err, "Could not create the task.")
			return
		}
		if !member {
			h.ErrLog.LogForbidden(w, r, "tasks: create in foreign team", nil, "You are not a member of this team.")
			return
		}
		if assigneeID != nil {
			if err := h.checkAssignee(ctx, *teamID, *assigneeID); err != nil {
				h.ErrLog.LogError(w, r, "tasks: invalid assignee", err)
				return
			}
		}
	}

	t, err := h.Tasks.Create(ctx, models.Task{
		OwnerID:    cu.ID,
		TeamID:     teamID,
		AssigneeID: assigneeID,
		Title:      title,
		DueAt:      req.DueAt,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "tasks: create failed", err, "Could not create the task.")
		return
	}
	view, err := h.view(ctx, t)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load team name failed", err)
		return
	}
	h.Log.Info("task created",
		zap.String("task_id", t.ID.Hex()),
		zap.String("user_id", cu.ID.Hex()),
		zap.Bool("team", t.IsTeam()))
	httpjson.Write(w, http.StatusCreated, view)
}
