package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

func TestSetupRoutesLibraryLoggersByLevel(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf, slog.LevelInfo)
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}

	logger := otelslog.NewLogger("github.com/koscakluka/ema-live/core/transport")
	logger.Debug("frame details")
	logger.Warn("dropping inbound record", "bytes", 12)
	slog.Info("starting session")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "dropping inbound record") {
		t.Fatalf("expected library warning in output, got:\n%s", out)
	}
	if !strings.Contains(out, "starting session") {
		t.Fatalf("expected default slog logger to share the sink, got:\n%s", out)
	}
	if strings.Contains(out, "frame details") {
		t.Fatalf("expected debug record to be dropped at info level, got:\n%s", out)
	}
}

func TestSeverityMatchesBridge(t *testing.T) {
	testCases := []struct {
		level slog.Level
		want  otellog.Severity
	}{
		{level: slog.LevelDebug, want: otellog.SeverityDebug},
		{level: slog.LevelInfo, want: otellog.SeverityInfo},
		{level: slog.LevelWarn, want: otellog.SeverityWarn},
		{level: slog.LevelError, want: otellog.SeverityError},
	}

	for _, testCase := range testCases {
		if got := severity(testCase.level); got != testCase.want {
			t.Fatalf("level %s: expected severity %v, got %v", testCase.level, testCase.want, got)
		}
	}
}
