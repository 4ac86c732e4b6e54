package transport

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/transport"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	droppedRecordCounter, _ = meter.Int64Counter(
		"transport.inbound.dropped",
		metric.WithDescription("Inbound records dropped because they could not be parsed"),
	)
	sentChunkCounter, _ = meter.Int64Counter(
		"transport.outbound.audio_chunks",
		metric.WithDescription("Audio chunks written to the connection"),
	)
)
