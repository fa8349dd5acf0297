package teams_test

import (
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	"github.com/dalemusser/focushub/internal/app/features/teams"
	taskstore "github.com/dalemusser/focushub/internal/app/store/tasks"
	teamstore "github.com/dalemusser/focushub/internal/app/store/teams"
	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/focushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type teamBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	JoinToken string `json:"join_token"`
	OwnerID   string `json:"owner_id"`
	IsOwner   bool   `json:"is_owner"`
	Members   []struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	} `json:"members"`
}

type env struct {
	h        *teams.Handler
	db       *mongo.Database
	fixtures *testutil.Fixtures
}

func newEnv(t *testing.T) env {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := teams.NewHandler(
		teamstore.New(db, logger),
		taskstore.New(db, logger),
		userstore.New(db),
		uierrors.NewErrorLogger(logger),
		logger,
	)
	return env{h: h, db: db, fixtures: testutil.NewFixtures(t, db)}
}

func withID(r *http.Request, id string) *http.Request {
	return testutil.WithChiURLParam(r, "id", id)
}

func TestCreateJoinAndView(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")

	rec := testutil.NewRecorder()
	e.h.ServeCreate(rec, testutil.NewAuthenticatedRequest("POST", "/api/teams", map[string]string{"name": "Core <b>team</b>"}, ann))
	rec.AssertStatus(t, http.StatusCreated)
	var created teamBody
	rec.DecodeJSON(t, &created)
	if created.Name != "Core team" || !created.IsOwner || created.JoinToken == "" {
		t.Fatalf("created: got %+v", created)
	}

	join := func() bool {
		t.Helper()
		rec := testutil.NewRecorder()
		e.h.ServeJoin(rec, testutil.NewAuthenticatedRequest("POST", "/api/teams/join", map[string]string{"token": created.JoinToken}, bob))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Team   teamBody `json:"team"`
			Joined bool     `json:"joined"`
		}
		rec.DecodeJSON(t, &body)
		if body.Team.IsOwner {
			t.Error("joiner should not be owner")
		}
		return body.Joined
	}
	if !join() {
		t.Error("first join: joined should be true")
	}
	if join() {
		t.Error("second join: joined should be false")
	}

	rec = testutil.NewRecorder()
	e.h.ServeView(rec, withID(testutil.NewAuthenticatedRequest("GET", "/", nil, bob), created.ID))
	rec.AssertStatus(t, http.StatusOK)
	var view teamBody
	rec.DecodeJSON(t, &view)
	if len(view.Members) != 2 || view.Members[0].UserID != ann.ID.Hex() || view.Members[1].DisplayName != "@bob" {
		t.Errorf("members: got %+v", view.Members)
	}
	if view.OwnerID != ann.ID.Hex() {
		t.Errorf("owner: got %s, want %s", view.OwnerID, ann.ID.Hex())
	}
}

func TestServeJoin_UnknownToken(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	e.h.ServeJoin(rec, testutil.NewAuthenticatedRequest("POST", "/api/teams/join", map[string]string{"token": "missing"}, ann))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeView_HiddenFromOutsiders(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	eve := e.fixtures.CreateUser(ctx, "eve")
	team := e.fixtures.CreateTeam(ctx, "Core", ann.ID)

	rec := testutil.NewRecorder()
	e.h.ServeView(rec, withID(testutil.NewAuthenticatedRequest("GET", "/", nil, eve), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeList(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")
	e.fixtures.CreateTeam(ctx, "zeta", ann.ID)
	alpha := e.fixtures.CreateTeam(ctx, "Alpha", bob.ID)
	e.fixtures.AddMember(ctx, alpha.ID, ann.ID, time.Now())

	rec := testutil.NewRecorder()
	e.h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/api/teams", nil, ann))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Teams []teamBody `json:"teams"`
	}
	rec.DecodeJSON(t, &body)
	if len(body.Teams) != 2 {
		t.Fatalf("teams: got %d, want 2", len(body.Teams))
	}
	if body.Teams[0].Name != "Alpha" || body.Teams[0].IsOwner {
		t.Errorf("first team: got %+v", body.Teams[0])
	}
	if body.Teams[1].Name != "zeta" || !body.Teams[1].IsOwner {
		t.Errorf("second team: got %+v", body.Teams[1])
	}
}

func TestServeRotateToken_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")
	team := e.fixtures.CreateTeam(ctx, "Core", ann.ID)
	e.fixtures.AddMember(ctx, team.ID, bob.ID, time.Now())

	rec := testutil.NewRecorder()
	e.h.ServeRotateToken(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, bob), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	e.h.ServeRotateToken(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, ann), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		JoinToken string `json:"join_token"`
	}
	rec.DecodeJSON(t, &body)
	if body.JoinToken == "" || body.JoinToken == team.JoinToken {
		t.Errorf("token: got %q, want a fresh token", body.JoinToken)
	}
}

func TestServeRotateToken_FirstJoinerOwnsLegacyTeam(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")
	team := e.fixtures.CreateTeam(ctx, "Legacy", ann.ID)
	e.fixtures.AddMember(ctx, team.ID, bob.ID, time.Now().Add(time.Hour))
	if _, err := e.db.Collection("teams").UpdateOne(ctx, bson.M{"_id": team.ID}, bson.M{"$unset": bson.M{"owner_id": ""}}); err != nil {
		t.Fatalf("unset owner: %v", err)
	}

	rec := testutil.NewRecorder()
	e.h.ServeRotateToken(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, ann), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	e.h.ServeRotateToken(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, bob), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeLeave_OwnerHandsOver(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")
	team := e.fixtures.CreateTeam(ctx, "Core", ann.ID)
	e.fixtures.AddMember(ctx, team.ID, bob.ID, time.Now().Add(time.Minute))
	task := e.fixtures.CreateTask(ctx, models.Task{OwnerID: bob.ID, TeamID: &team.ID, AssigneeID: &ann.ID, Title: "Review"})

	rec := testutil.NewRecorder()
	e.h.ServeLeave(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, ann), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusNoContent)

	var got models.Task
	if err := e.db.Collection("tasks").FindOne(ctx, bson.M{"_id": task.ID}).Decode(&got); err != nil {
		t.Fatalf("load task: %v", err)
	}
	if got.AssigneeID != nil {
		t.Errorf("assignee should be cleared after leaving, got %v", got.AssigneeID)
	}

	rec = testutil.NewRecorder()
	e.h.ServeView(rec, withID(testutil.NewAuthenticatedRequest("GET", "/", nil, bob), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var view teamBody
	rec.DecodeJSON(t, &view)
	if !view.IsOwner {
		t.Errorf("remaining member should own the team, got %+v", view)
	}
}

func TestServeLeave_LastMemberDeletesTeam(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	team := e.fixtures.CreateTeam(ctx, "Solo", ann.ID)
	e.fixtures.CreateTask(ctx, models.Task{OwnerID: ann.ID, TeamID: &team.ID, Title: "Orphan"})

	rec := testutil.NewRecorder()
	e.h.ServeLeave(rec, withID(testutil.NewAuthenticatedRequest("POST", "/", nil, ann), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusNoContent)

	for _, coll := range []string{"teams", "tasks"} {
		n, err := e.db.Collection(coll).CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatalf("count %s: %v", coll, err)
		}
		if n != 0 {
			t.Errorf("%s: got %d documents, want 0", coll, n)
		}
	}
}

func TestServeDelete_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ann := e.fixtures.CreateUser(ctx, "ann")
	bob := e.fixtures.CreateUser(ctx, "bob")
	team := e.fixtures.CreateTeam(ctx, "Core", ann.ID)
	e.fixtures.AddMember(ctx, team.ID, bob.ID, time.Now())
	e.fixtures.CreateTask(ctx, models.Task{OwnerID: bob.ID, TeamID: &team.ID, Title: "Team work"})
	e.fixtures.CreateTask(ctx, models.Task{OwnerID: bob.ID, Title: "Personal"})

	rec := testutil.NewRecorder()
	e.h.ServeDelete(rec, withID(testutil.NewAuthenticatedRequest("DELETE", "/", nil, bob), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	e.h.ServeDelete(rec, withID(testutil.NewAuthenticatedRequest("DELETE", "/", nil, ann), team.ID.Hex()))
	rec.AssertStatus(t, http.StatusNoContent)

	n, err := e.db.Collection("tasks").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if n != 1 {
		t.Errorf("tasks: got %d, want only the personal task left", n)
	}
	n, err = e.db.Collection("team_memberships").CountDocuments(ctx, bson.M{"team_id": team.ID})
	if err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if n != 0 {
		t.Errorf("memberships: got %d, want 0", n)
	}
}
