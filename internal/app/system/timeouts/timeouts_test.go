package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZeroValues(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second})

	if got := Short(); got != 7*time.Second {
		t.Errorf("Short: got %v, want %v", got, 7*time.Second)
	}
	if got := Medium(); got != DefaultMedium {
		t.Errorf("Medium: got %v, want %v", got, DefaultMedium)
	}
	if got := Current().Long; got != DefaultLong {
		t.Errorf("Long: got %v, want %v", got, DefaultLong)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	defer cancel()

	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", ctx.Err())
	}
}
