// Package logging routes the otelslog loggers of every package to a writer
// through the OpenTelemetry log SDK.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const scopeName = "github.com/koscakluka/ema-live/cmd/ema-live"

// Setup installs a global logger provider that writes records at or above
// level to w, and makes it the slog default as well. The returned function
// flushes and shuts the provider down.
func Setup(w io.Writer, level slog.Level) (func(context.Context) error, error) {
	exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minSeverity{
			Processor: sdklog.NewSimpleProcessor(exporter),
			min:       severity(level),
		}),
	)
	global.SetLoggerProvider(provider)
	slog.SetDefault(otelslog.NewLogger(scopeName, otelslog.WithLoggerProvider(provider)))
	return provider.Shutdown, nil
}

// minSeverity drops records below min before they reach the exporter.
type minSeverity struct {
	sdklog.Processor
	min otellog.Severity
}

func (p minSeverity) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < p.min {
		return nil
	}
	return p.Processor.OnEmit(ctx, record)
}

// severity maps a slog level the same way the otelslog bridge does.
func severity(level slog.Level) otellog.Severity {
	return otellog.Severity(level + 9)
}
