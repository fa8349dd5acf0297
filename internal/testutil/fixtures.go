package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db     *mongo.Database
	t      *testing.T
	nextTG int64
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t, nextTG: 1000}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with the next free Telegram id.
func (f *Fixtures) CreateUser(ctx context.Context, username string) models.User {
	f.t.Helper()

	f.nextTG++
	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		TelegramID: f.nextTG,
		Username:   username,
		FirstName:  username,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateTeam inserts a team owned by owner and adds owner as first member.
func (f *Fixtures) CreateTeam(ctx context.Context, name string, owner primitive.ObjectID) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		JoinToken: uuid.NewString(),
		OwnerID:   &owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}
	f.AddMember(ctx, team.ID, owner, now)
	return team
}

// AddMember inserts a membership joined at the given instant.
func (f *Fixtures) AddMember(ctx context.Context, teamID, userID primitive.ObjectID, joinedAt time.Time) models.TeamMembership {
	f.t.Helper()

	m := models.TeamMembership{
		ID:       primitive.NewObjectID(),
		TeamID:   teamID,
		UserID:   userID,
		JoinedAt: joinedAt.UTC(),
	}
	if _, err := f.db.Collection("team_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateTask inserts t, filling ID and timestamps when unset.
func (f *Fixtures) CreateTask(ctx context.Context, t models.Task) models.Task {
	f.t.Helper()

	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	if _, err := f.db.Collection("tasks").InsertOne(ctx, t); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return t
}

// CreateFocus inserts a focus note.
func (f *Fixtures) CreateFocus(ctx context.Context, userID primitive.ObjectID, note string) models.Focus {
	f.t.Helper()

	fc := models.Focus{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Text:      note,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("focus").InsertOne(ctx, fc); err != nil {
		f.t.Fatalf("failed to create test focus: %v", err)
	}
	return fc
}

// CreatePreference inserts p as stored, without clamping.
func (f *Fixtures) CreatePreference(ctx context.Context, p models.NotificationPreference) models.NotificationPreference {
	f.t.Helper()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.UpdatedAt = time.Now().UTC()
	if _, err := f.db.Collection("notification_preferences").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test preference: %v", err)
	}
	return p
}
