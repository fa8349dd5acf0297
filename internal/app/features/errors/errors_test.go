package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/app/system/httpjson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) httpjson.ErrorDetail {
	t.Helper()
	var body httpjson.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestLogError_Classifies(t *testing.T) {
	el := NewErrorLogger(zap.NewNop())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: title is required", apperr.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"not found", mongo.ErrNoDocuments, http.StatusNotFound, "not_found"},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"transport", fmt.Errorf("%w: status 502", apperr.ErrTransport), http.StatusBadGateway, "transport_failure"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"uncategorized", fmt.Errorf("socket closed"), http.StatusInternalServerError, "storage_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			el.LogError(rec, httptest.NewRequest("GET", "/api/tasks", nil), "test", tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode(t, rec); got.Code != tt.wantCode {
				t.Errorf("code: got %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestLogError_HidesInternalMessages(t *testing.T) {
	el := NewErrorLogger(zap.NewNop())

	rec := httptest.NewRecorder()
	el.LogError(rec, httptest.NewRequest("GET", "/", nil), "test", fmt.Errorf("dial tcp 10.0.0.5:27017: refused"))
	if got := decode(t, rec); got.Message != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("message leaked internals: %q", got.Message)
	}

	rec = httptest.NewRecorder()
	el.LogError(rec, httptest.NewRequest("GET", "/", nil), "test", fmt.Errorf("%w: title is required", apperr.ErrValidation))
	if got := decode(t, rec); got.Message != "validation failed: title is required" {
		t.Errorf("validation message: got %q", got.Message)
	}
}

func TestFixedStatusHelpers(t *testing.T) {
	el := NewErrorLogger(zap.NewNop())
	r := httptest.NewRequest("GET", "/", nil)

	tests := []struct {
		name   string
		call   func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"server", func(w http.ResponseWriter) { el.LogServerError(w, r, "m", nil, "boom") }, http.StatusInternalServerError, "storage_failure"},
		{"bad request", func(w http.ResponseWriter) { el.LogBadRequest(w, r, "m", nil, "bad") }, http.StatusBadRequest, "validation_error"},
		{"unauthorized", func(w http.ResponseWriter) { el.LogUnauthorized(w, r, "m", nil) }, http.StatusUnauthorized, "auth_rejected"},
		{"forbidden", func(w http.ResponseWriter) { el.LogForbidden(w, r, "m", nil, "no") }, http.StatusForbidden, "forbidden"},
		{"not found", func(w http.ResponseWriter) { el.LogNotFound(w, r, "m", "gone") }, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.call(rec)
			if rec.Code != tt.status || decode(t, rec).Code != tt.code {
				t.Errorf("got %d %q, want %d %q", rec.Code, decode(t, rec).Code, tt.status, tt.code)
			}
		})
	}
}
