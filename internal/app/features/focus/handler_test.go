package focus_test

import (
	"net/http"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/focushub/internal/app/features/errors"
	"github.com/dalemusser/focushub/internal/app/features/focus"
	focusstore "github.com/dalemusser/focushub/internal/app/store/focus"
	"github.com/dalemusser/focushub/internal/testutil"
	"go.uber.org/zap"
)

type focusBody struct {
	Text  string `json:"text"`
	IsSet bool   `json:"is_set"`
}

func newHandler(t *testing.T) (*focus.Handler, *testutil.Fixtures) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := focus.NewHandler(focusstore.New(db), uierrors.NewErrorLogger(logger), logger)
	return h, testutil.NewFixtures(t, db)
}

func TestServeGet_NotSet(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := fixtures.CreateUser(ctx, "ann")

	rec := testutil.NewRecorder()
	h.ServeGet(rec, testutil.NewAuthenticatedRequest("GET", "/api/focus", nil, user))
	rec.AssertStatus(t, http.StatusOK)

	var got focusBody
	rec.DecodeJSON(t, &got)
	if got.IsSet || got.Text != "(not set)" {
		t.Errorf("focus: got %+v, want unset sentinel", got)
	}
}

func TestServePut_LatestWins(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := fixtures.CreateUser(ctx, "ann")

	for _, text := range []string{"first", "<i>second</i>"} {
		rec := testutil.NewRecorder()
		h.ServePut(rec, testutil.NewAuthenticatedRequest("PUT", "/api/focus", map[string]string{"text": text}, user))
		rec.AssertStatus(t, http.StatusOK)
	}

	rec := testutil.NewRecorder()
	h.ServeGet(rec, testutil.NewAuthenticatedRequest("GET", "/api/focus", nil, user))
	var got focusBody
	rec.DecodeJSON(t, &got)
	if !got.IsSet || got.Text != "second" {
		t.Errorf("focus: got %+v, want sanitized latest entry", got)
	}
}

func TestServePut_Validation(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := fixtures.CreateUser(ctx, "ann")

	tests := []struct {
		name string
		body any
	}{
		{"empty", map[string]string{"text": "  "}},
		{"too long", map[string]string{"text": strings.Repeat("a", 501)}},
		{"unknown field", map[string]string{"note": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServePut(rec, testutil.NewAuthenticatedRequest("PUT", "/api/focus", tt.body, user))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertErrorCode(t, "validation_error")
		})
	}
}
