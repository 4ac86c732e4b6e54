package capture

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/capture"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	overrunCounter, _ = meter.Int64Counter(
		"capture.overruns",
		metric.WithDescription("Device frames dropped because the capture queue was full"),
	)
	chunkCounter, _ = meter.Int64Counter(
		"capture.chunks",
		metric.WithDescription("Encoded chunks emitted by the capture pipeline"),
	)
)
