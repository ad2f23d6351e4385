package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(Options{Env: "dev", Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zap.WarnLevel) {
		t.Fatalf("warn should be enabled at warn level")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	nop := zap.NewNop()
	SetDefault(nop)
	t.Cleanup(func() { SetDefault(nil) })

	if got := FromContext(context.Background()); got != nop {
		t.Fatalf("expected default logger when context has none")
	}

	scoped := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), scoped)
	if got := L(ctx); got != scoped {
		t.Fatalf("expected context logger")
	}
}
