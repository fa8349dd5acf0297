package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"go.uber.org/zap"
)

func TestTelegram_Send_Success(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	s := NewTelegram(srv.URL+"/", "42:abc", srv.Client(), zap.NewNop())
	if err := s.Send(context.Background(), 1001, "<b>hi</b>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if path != "/bot42:abc/sendMessage" {
		t.Errorf("path: got %q, want %q", path, "/bot42:abc/sendMessage")
	}
	if got.ChatID != 1001 || got.Text != "<b>hi</b>" || got.ParseMode != "HTML" || !got.DisableWebPagePreview {
		t.Errorf("unexpected request body: %+v", got)
	}
}

func TestTelegram_Send_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"forbidden", http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, "bot was blocked"},
		{"server error no body", http.StatusBadGateway, ``, "Bad Gateway"},
		{"ok false with 200", http.StatusOK, `{"ok":false,"description":"Bad Request: chat not found"}`, "chat not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewTelegram(srv.URL, "t", srv.Client(), zap.NewNop()).Send(context.Background(), 1, "x")
			if !errors.Is(err, apperr.ErrTransport) {
				t.Fatalf("expected ErrTransport, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestTelegram_Send_NetworkErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := NewTelegram(base, "secret-token", nil, zap.NewNop()).Send(context.Background(), 1, "x")
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestLogSender(t *testing.T) {
	if err := (LogSender{Log: zap.NewNop()}).Send(context.Background(), 1, "x"); err != nil {
		t.Errorf("LogSender.Send: %v", err)
	}
}
