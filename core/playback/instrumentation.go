package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	decodeFailureCounter, _ = meter.Int64Counter(
		"playback.decode_failures",
		metric.WithDescription("Inbound audio chunks dropped because they could not be decoded"),
	)
	flushedCounter, _ = meter.Int64Counter(
		"playback.flushed_buffers",
		metric.WithDescription("Scheduled buffers dropped by a flush before they started"),
	)
)
