package notifications_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	"github.com/dalemusser/focushub/internal/app/features/notifications"
	notifylogstore "github.com/dalemusser/focushub/internal/app/store/notifylog"
	prefstore "github.com/dalemusser/focushub/internal/app/store/preferences"
	"github.com/dalemusser/focushub/internal/app/store/queries/digestqueries"
	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/focushub/internal/testutil"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail bool
}

func (s *recordingSender) Send(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("%w: status 502", apperr.ErrTransport)
	}
	if s.sent == nil {
		s.sent = map[int64][]string{}
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

var refNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	h        *notifications.Handler
	sender   *recordingSender
	prefs    *prefstore.Store
	fixtures *testutil.Fixtures
}

func newEnv(t *testing.T) env {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	clock := func() time.Time { return refNow }

	prefs := prefstore.New(db)
	logs := notifylogstore.New(db)
	builder := digest.NewBuilder(digestqueries.New(db))
	sender := &recordingSender{}
	engine := &dispatch.Engine{
		Prefs:   prefs,
		Users:   userstore.New(db),
		Builder: builder,
		Sender:  sender,
		Log:     logs,
		Logger:  logger,
		Now:     clock,
	}
	h := notifications.NewHandler(prefs, logs, builder, engine, uierrors.NewErrorLogger(logger), logger)
	h.Now = clock
	return env{h: h, sender: sender, prefs: prefs, fixtures: testutil.NewFixtures(t, db)}
}

type settingsBody struct {
	Enabled         bool       `json:"enabled"`
	IntervalHours   int        `json:"interval_hours"`
	StartHour       int        `json:"start_hour"`
	EndHour         int        `json:"end_hour"`
	TZOffsetMinutes int        `json:"tz_offset_minutes"`
	LastSentAt      *time.Time `json:"last_sent_at"`
	State           string     `json:"state"`
}

func TestServeGetSettings_Defaults(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	e.h.ServeGetSettings(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/settings", nil, user))
	rec.AssertStatus(t, http.StatusOK)

	var got settingsBody
	rec.DecodeJSON(t, &got)
	if got.Enabled || got.IntervalHours != models.DefaultIntervalHours || got.StartHour != models.DefaultStartHour || got.EndHour != models.DefaultEndHour {
		t.Errorf("defaults: got %+v", got)
	}
	if got.State != string(dispatch.StateDisabled) {
		t.Errorf("state: got %q, want disabled", got.State)
	}
}

func TestServePutSettings_ClampsAndEnables(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")

	sent := refNow.Add(-time.Hour)
	e.fixtures.CreatePreference(ctx, models.NotificationPreference{
		UserID:        user.ID,
		Enabled:       false,
		IntervalHours: 4,
		StartHour:     9,
		EndHour:       21,
		LastSentAt:    &sent,
	})

	rec := testutil.NewRecorder()
	e.h.ServePutSettings(rec, testutil.NewAuthenticatedRequest("PUT", "/api/notifications/settings",
		map[string]any{"enabled": true, "interval_hours": 99, "start_hour": -3, "tz_offset_minutes": 2000}, user))
	rec.AssertStatus(t, http.StatusOK)

	var got settingsBody
	rec.DecodeJSON(t, &got)
	if got.IntervalHours != 24 || got.StartHour != 0 || got.EndHour != 21 || got.TZOffsetMinutes != 840 {
		t.Errorf("clamped: got %+v", got)
	}
	if got.LastSentAt != nil {
		t.Errorf("enabling should clear last_sent_at, got %v", got.LastSentAt)
	}

	stored, err := e.prefs.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.Enabled || stored.IntervalHours != 24 || stored.LastSentAt != nil {
		t.Errorf("stored: got %+v", stored)
	}
}

func TestServePutSettings_RejectsUnknownField(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	e.h.ServePutSettings(rec, testutil.NewAuthenticatedRequest("PUT", "/api/notifications/settings",
		map[string]any{"last_sent_at": nil}, user))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServePreview(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")
	e.fixtures.CreateFocus(ctx, user.ID, "Ship <v2>")
	due := refNow.Add(2 * time.Hour)
	e.fixtures.CreateTask(ctx, models.Task{OwnerID: user.ID, Title: "Write report", DueAt: &due})

	rec := testutil.NewRecorder()
	e.h.ServePreview(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/preview", nil, user))
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Text string `json:"text"`
	}
	rec.DecodeJSON(t, &got)
	for _, want := range []string{"Ship &lt;v2&gt;", "Write report", "12:00"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("preview should contain %q:\n%s", want, got.Text)
		}
	}
	if len(e.sender.sent) != 0 {
		t.Error("preview must not send")
	}
}

func TestServeTest_SendsAndLogs(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	e.h.ServeTest(rec, testutil.NewAuthenticatedRequest("POST", "/api/notifications/test", nil, user))
	rec.AssertStatus(t, http.StatusOK)
	if n := len(e.sender.sent[user.TelegramID]); n != 1 {
		t.Fatalf("sent: got %d messages, want 1", n)
	}

	rec = testutil.NewRecorder()
	e.h.ServeLog(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/log?limit=5", nil, user))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Entries []models.NotificationLog `json:"entries"`
	}
	rec.DecodeJSON(t, &body)
	if len(body.Entries) != 1 || !body.Entries[0].Success || body.Entries[0].Kind != models.NotificationKindDigest {
		t.Errorf("log: got %+v", body.Entries)
	}
}

func TestServeTest_TransportFailure(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")
	e.sender.fail = true

	rec := testutil.NewRecorder()
	e.h.ServeTest(rec, testutil.NewAuthenticatedRequest("POST", "/api/notifications/test", nil, user))
	rec.AssertStatus(t, http.StatusBadGateway)
	rec.AssertErrorCode(t, "transport_failure")

	rec = testutil.NewRecorder()
	e.h.ServeLog(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/log", nil, user))
	var body struct {
		Entries []models.NotificationLog `json:"entries"`
	}
	rec.DecodeJSON(t, &body)
	if len(body.Entries) != 1 || body.Entries[0].Success || body.Entries[0].Error == "" {
		t.Errorf("failed attempt should be logged with its error, got %+v", body.Entries)
	}
}

func TestServeLog_BadLimit(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := e.fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	e.h.ServeLog(rec, testutil.NewAuthenticatedRequest("GET", "/api/notifications/log?limit=-1", nil, user))
	rec.AssertStatus(t, http.StatusBadRequest)
}
