package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/auth"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type patchRequest struct {
	Title         *string    `json:"title"`
	DueAt         *time.Time `json:"due_at"`
	ClearDueAt    bool       `json:"clear_due_at"`
	AssigneeID    *string    `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
}

// ServePatch handles PATCH /api/tasks/{id}.
func (h *Handler) ServePatch(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "tasks: no user in context", nil)
		return
	}

	var req patchRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "tasks: bad patch body", err, err.Error())
		return
	}
	var u taskstore.Update
	if req.Title != nil {
		title, err := inputval.Text("title", *req.Title, inputval.MaxTitle)
		if err != nil {
			h.ErrLog.LogError(w, r, "tasks: invalid title", err)
			return
		}
		u.Title = &title
	}
	if req.ClearDueAt && req.DueAt != nil {
		h.ErrLog.LogError(w, r, "tasks: conflicting due fields",
			fmt.Errorf("%w: due_at and clear_due_at are mutually exclusive", apperr.ErrValidation))
		return
	}
	u.DueAt, u.ClearDueAt = req.DueAt, req.ClearDueAt

	assigneeID, err := inputval.OptionalObjectID("assignee_id", req.AssigneeID)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: invalid assignee id", err)
		return
	}
	if req.ClearAssignee && assigneeID != nil {
		h.ErrLog.LogError(w, r, "tasks: conflicting assignee fields",
			fmt.Errorf("%w: assignee_id and clear_assignee are mutually exclusive", apperr.ErrValidation))
		return
	}
	u.AssigneeID, u.ClearAssignee = assigneeID, req.ClearAssignee

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.loadVisible(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load for patch failed", err)
		return
	}
	if assigneeID != nil {
		if t.TeamID == nil {
			h.ErrLog.LogError(w, r, "tasks: assignee on personal task",
				fmt.Errorf("%w: only team tasks can have an assignee", apperr.ErrValidation))
			return
		}
		if err := h.checkAssignee(ctx, *t.TeamID, *assigneeID); err != nil {
			h.ErrLog.LogError(w, r, "tasks: invalid assignee", err)
			return
		}
	}

	updated, err := h.Tasks.Apply(ctx, t.ID, u)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: apply failed", apperr.Storage(err))
		return
	}
	h.writeTask(ctx, w, r, *updated)
}

// ServeComplete handles POST /api/tasks/{id}/complete.
func (h *Handler) ServeComplete(w http.ResponseWriter, r *http.Request) {
	h.setDone(w, r, true)
}

// ServeReopen handles POST /api/tasks/{id}/reopen.
func (h *Handler) ServeReopen(w http.ResponseWriter, r *http.Request) {
	h.setDone(w, r, false)
}

func (h *Handler) setDone(w http.ResponseWriter, r *http.Request, done bool) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.LogUnauthorized(w, r, "tasks: no user in context", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.loadVisible(ctx, cu.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load for done failed", err)
		return
	}
	updated, err := h.Tasks.SetDone(ctx, t.ID, done)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: set done failed", apperr.Storage(err))
		return
	}
	h.writeTask(ctx, w, r, *updated)
}

func (h *Handler) writeTask(ctx context.Context, w http.ResponseWriter, r *http.Request, t models.Task) {
	view, err := h.view(ctx, t)
	if err != nil {
		h.ErrLog.LogError(w, r, "tasks: load team name failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, view)
}
