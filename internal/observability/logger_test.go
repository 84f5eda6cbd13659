package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies level parsing is case-insensitive and falls back to INFO.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	logger.Info("test message")
	_ = logger.Sync()
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("console message")
}

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil); err != nil {
		t.Errorf("FlushTelemetry(nil) = %v, want nil", err)
	}
}

func TestFlushTelemetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := FlushTelemetry(ctx, zap.NewNop()); err == nil {
		t.Error("FlushTelemetry with cancelled context should return an error")
	}
}
