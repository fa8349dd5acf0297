package teams

import (
	"context"
	"errors"
	"fmt"
	"time"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	teamstore "github.com/dalemusser/focushub/internal/app/store/teams"
	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/inputval"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves team management. Teams are visible only to their members;
// ownership is the explicit owner, or the earliest member when none is set.
type Handler struct {
	Teams  *teamstore.Store
	Tasks  *taskstore.Store
	Users  *userstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(teams *teamstore.Store, tasks *taskstore.Store, users *userstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Teams: teams, Tasks: tasks, Users: users, ErrLog: errLog, Log: logger}
}

type teamView struct {
	models.Team
	OwnerID *primitive.ObjectID `json:"owner_id,omitempty"`
	IsOwner bool                `json:"is_owner"`
}

type memberView struct {
	UserID      primitive.ObjectID `json:"user_id"`
	Username    string             `json:"username,omitempty"`
	DisplayName string             `json:"display_name"`
	JoinedAt    time.Time          `json:"joined_at"`
}

// loadMemberTeam returns the team addressed by rawID when userID belongs to it.
func (h *Handler) loadMemberTeam(ctx context.Context, userID primitive.ObjectID, rawID string) (*models.Team, error) {
	id, err := inputval.ObjectID("team id", rawID)
	if err != nil {
		return nil, err
	}
	member, err := h.Teams.IsMember(ctx, id, userID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !member {
		return nil, fmt.Errorf("team %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	team, err := h.Teams.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("team %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return team, nil
}

// view resolves the effective owner of team for userID.
func (h *Handler) view(ctx context.Context, team models.Team, userID primitive.ObjectID) (teamView, error) {
	v := teamView{Team: team}
	owner, err := h.Teams.Owner(ctx, team)
	switch {
	case errors.Is(err, teamstore.ErrNoMembers):
		return v, nil
	case err != nil:
		return teamView{}, apperr.Storage(err)
	}
	v.OwnerID = &owner
	v.IsOwner = owner == userID
	return v, nil
}

// requireOwner loads the team and checks userID owns it.
func (h *Handler) requireOwner(ctx context.Context, userID primitive.ObjectID, rawID string) (*models.Team, error) {
	team, err := h.loadMemberTeam(ctx, userID, rawID)
	if err != nil {
		return nil, err
	}
	v, err := h.view(ctx, *team, userID)
	if err != nil {
		return nil, err
	}
	if !v.IsOwner {
		return nil, fmt.Errorf("team %s: %w", team.ID.Hex(), apperr.ErrForbidden)
	}
	return team, nil
}
