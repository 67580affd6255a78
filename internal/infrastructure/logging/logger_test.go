package logging_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/logging"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := logging.New(logging.Config{Level: "warn", Encoding: "json", ServiceName: "partout-test"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be enabled")
	}
	if logging.Logger() != logger {
		t.Fatalf("expected global logger to be replaced")
	}
}

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	logger, err := logging.New(logging.Config{Level: "chatty", Encoding: "console"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level fallback")
	}
}

func TestOrNop(t *testing.T) {
	if logging.OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
