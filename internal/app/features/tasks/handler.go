package tasks

import (
	"context"
	"errors"
	"fmt"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	teamstore "github.com/dalemusser/focushub/internal/app/store/teams"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves personal and team task CRUD.
//
// A personal task is visible only to its owner; a team task to every member
// of its team. Tasks the caller cannot see are reported as not found.
type Handler struct {
	Tasks  *taskstore.Store
	Teams  *teamstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(tasks *taskstore.Store, teams *teamstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Tasks: tasks, Teams: teams, ErrLog: errLog, Log: logger}
}

// taskView is a task as returned to the client.
type taskView struct {
	models.Task
	TeamName string `json:"team_name,omitempty"`
}

// loadVisible returns the task addressed by rawID when userID may see it.
func (h *Handler) loadVisible(ctx context.Context, userID primitive.ObjectID, rawID string) (*models.Task, error) {
	id, err := inputval.ObjectID("task id", rawID)
	if err != nil {
		return nil, err
	}
	t, err := h.Tasks.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("task %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if t.TeamID == nil {
		if t.OwnerID != userID {
			return nil, fmt.Errorf("task %s: %w", id.Hex(), apperr.ErrNotFound)
		}
		return t, nil
	}
	member, err := h.Teams.IsMember(ctx, *t.TeamID, userID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !member {
		return nil, fmt.Errorf("task %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return t, nil
}

// checkAssignee verifies assigneeID belongs to teamID.
func (h *Handler) checkAssignee(ctx context.Context, teamID, assigneeID primitive.ObjectID) error {
	ok, err := h.Teams.IsMember(ctx, teamID, assigneeID)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok {
		return fmt.Errorf("%w: assignee must be a member of the task's team", apperr.ErrValidation)
	}
	return nil
}

// views attaches team names to ts.
func (h *Handler) views(ctx context.Context, ts []models.Task) ([]taskView, error) {
	var teamIDs []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, t := range ts {
		if t.TeamID != nil && !seen[*t.TeamID] {
			seen[*t.TeamID] = true
			teamIDs = append(teamIDs, *t.TeamID)
		}
	}
	names, err := h.Teams.Names(ctx, teamIDs)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	out := make([]taskView, len(ts))
	for i, t := range ts {
		out[i] = taskView{Task: t}
		if t.TeamID != nil {
			out[i].TeamName = names[*t.TeamID]
		}
	}
	return out, nil
}

func (h *Handler) view(ctx context.Context, t models.Task) (taskView, error) {
	vs, err := h.views(ctx, []models.Task{t})
	if err != nil {
		return taskView{}, err
	}
	return vs[0], nil
}
