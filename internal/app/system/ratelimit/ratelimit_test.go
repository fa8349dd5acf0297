package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndWindow(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Close()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatal("first two events should be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Error("third event should be rejected")
	}
	if !l.Blocked("1.2.3.4") {
		t.Error("key should be blocked")
	}
	if l.Blocked("5.6.7.8") {
		t.Error("other keys should not be blocked")
	}

	now = base.Add(61 * time.Second)
	if l.Blocked("1.2.3.4") {
		t.Error("window should have expired")
	}
	if got := l.Remaining("1.2.3.4"); got != 2 {
		t.Errorf("Remaining: got %d, want 2", got)
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()

	l.Allow("k")
	if !l.Blocked("k") {
		t.Fatal("expected blocked")
	}
	l.Reset("k")
	if l.Blocked("k") {
		t.Error("Reset should clear the window")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded first", "10.0.0.1, 10.0.0.2", "10.0.0.9", "192.168.1.1:5555", "10.0.0.1"},
		{"real ip", "", "10.0.0.9", "192.168.1.1:5555", "10.0.0.9"},
		{"remote addr", "", "", "192.168.1.1:5555", "192.168.1.1"},
		{"remote without port", "", "", "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP: got %q, want %q", got, tt.want)
			}
		})
	}
}
