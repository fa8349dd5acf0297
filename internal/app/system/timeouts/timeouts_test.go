package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	defer Reset()

	Configure(Config{Short: 7 * time.Second, Cycle: 2 * time.Minute})

	if got := Short(); got != 7*time.Second {
		t.Errorf("Short: got %v, want %v", got, 7*time.Second)
	}
	if got := Cycle(); got != 2*time.Minute {
		t.Errorf("Cycle: got %v, want %v", got, 2*time.Minute)
	}
	if got := Medium(); got != DefaultMedium {
		t.Errorf("Medium: got %v, want default %v", got, DefaultMedium)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	defer Reset()
	t.Setenv("TIMEOUT_PING", "500ms")
	t.Setenv("TIMEOUT_LONG", "not-a-duration")
	t.Setenv("TIMEOUT_CYCLE", "-1s")

	if n := ConfigureFromEnv(); n != 1 {
		t.Errorf("configured: got %d, want 1", n)
	}
	cur := Current()
	if cur.Ping != 500*time.Millisecond {
		t.Errorf("Ping: got %v", cur.Ping)
	}
	if cur.Long != DefaultLong || cur.Cycle != DefaultCycle {
		t.Errorf("invalid values should be ignored, got %+v", cur)
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err: got %v, want %v", ctx.Err(), context.DeadlineExceeded)
	}
}
