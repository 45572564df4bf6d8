package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "dispatch completed", Field{Key: "duration_ms", Value: 12.5})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["level"] != "info" || e["msg"] != "dispatch completed" {
		t.Errorf("entry = %v", e)
	}
	if e["duration_ms"] != 12.5 {
		t.Errorf("duration_ms = %v, want 12.5", e["duration_ms"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("entries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		Field{Key: "token", Value: "eyJhbGciOi"},
		Field{Key: "payload", Value: map[string]string{"card": "4111"}},
		Field{Key: "user", Value: "alice"},
	)

	e := decodeLines(t, &buf)[0]
	if e["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", e["token"])
	}
	if e["payload"] != "[REDACTED]" {
		t.Errorf("payload = %v, want [REDACTED]", e["payload"])
	}
	if e["user"] != "alice" {
		t.Errorf("user = %v, want alice", e["user"])
	}
}

func TestLogger_WithMessage(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)

	scoped := base.WithMessage(MessageMeta{Type: "CreateWidget", DispatchID: "01J0", IdempotencyKey: "req-1"})
	scoped.Info(context.Background(), "scoped")
	base.Info(context.Background(), "base")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0]["message.type"] != "CreateWidget" {
		t.Errorf("message.type = %v", entries[0]["message.type"])
	}
	if entries[0]["dispatch_id"] != "01J0" || entries[0]["idempotency_key"] != "req-1" {
		t.Errorf("scoped entry = %v", entries[0])
	}
	if _, ok := entries[1]["message.type"]; ok {
		t.Error("WithMessage should not modify the base logger")
	}
}

func TestLogger_DispatchIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	ctx := WithDispatchID(context.Background(), "01HZX")
	logger.Info(ctx, "with id")

	if got := decodeLines(t, &buf)[0]["dispatch_id"]; got != "01HZX" {
		t.Errorf("dispatch_id = %v, want 01HZX", got)
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).WithMessage(MessageMeta{Type: "CreateWidget"})

	ctx := WithDispatchID(context.Background(), "01ABC")
	logger.Debug(ctx, "d")
	logger.Info(ctx, "i", Field{Key: "n", Value: 3})
	logger.Warn(ctx, "w", Field{Key: "secret", Value: "hunter2"})
	logger.Error(ctx, "e")

	if logs.Len() != 4 {
		t.Fatalf("entries = %d, want 4", logs.Len())
	}

	all := logs.All()
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, lvl := range wantLevels {
		if all[i].Level != lvl {
			t.Errorf("entry %d level = %v, want %v", i, all[i].Level, lvl)
		}
	}

	info := all[1].ContextMap()
	if info["message.type"] != "CreateWidget" {
		t.Errorf("message.type = %v", info["message.type"])
	}
	if info["dispatch_id"] != "01ABC" {
		t.Errorf("dispatch_id = %v", info["dispatch_id"])
	}
	if info["n"] != int64(3) {
		t.Errorf("n = %v (%T), want 3", info["n"], info["n"])
	}
	if got := all[2].ContextMap()["secret"]; got != "[REDACTED]" {
		t.Errorf("secret = %v, want [REDACTED]", got)
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "x")
	if l.WithMessage(MessageMeta{Type: "T"}) == nil {
		t.Error("WithMessage() returned nil")
	}
	if NewZapLogger(nil) == nil {
		t.Error("NewZapLogger(nil) returned nil")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
