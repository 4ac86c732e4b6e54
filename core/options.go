package session

import (
	"context"
	"time"

	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

type SessionOption func(*Session)

// Conn is an open connection to the speech service.
type Conn interface {
	Events() <-chan events.Inbound
	Send(ctx context.Context, msg events.Outbound) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, params transport.Params) (Conn, error)
}

type DialerFunc func(ctx context.Context, params transport.Params) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, params transport.Params) (Conn, error) {
	return f(ctx, params)
}

// WebsocketDialer adapts a transport dialer to the session.
func WebsocketDialer(d *transport.Dialer) Dialer {
	return DialerFunc(func(ctx context.Context, params transport.Params) (Conn, error) {
		conn, err := d.Dial(ctx, params)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// AudioInput is a host microphone.
//
// onSamples receives mono float frames at CaptureSampleRate on the device
// thread and must not block. onStopped is called if the device stops without
// StopCapture being called.
type AudioInput interface {
	CaptureSampleRate() int
	StartCapture(ctx context.Context, onSamples func(samples []float32), onStopped func(err error)) error
	StopCapture() error
}

// AudioOutput is a host speaker. render is called on the device thread to
// fill each period with mono float frames at the output sample rate.
type AudioOutput interface {
	StartPlayback(ctx context.Context, render func(out []float32)) error
	StopPlayback() error
}

func WithAudioInput(input AudioInput) SessionOption {
	return func(s *Session) { s.input = input }
}

func WithAudioOutput(output AudioOutput) SessionOption {
	return func(s *Session) { s.output = output }
}

// WithChunkSamples sets how many 16kHz samples go into one upstream chunk.
func WithChunkSamples(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.chunkSamples = n
		}
	}
}

// WithConnectTimeout bounds how long Connect waits for the service to accept
// the session, dial included.
func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.connectTimeout = timeout
		}
	}
}

// WithRecordCallback registers a callback for every finalized user,
// assistant and coach record.
func WithRecordCallback(callback func(record Record)) SessionOption {
	return func(s *Session) { s.callbacks.onRecord = callback }
}

func WithStateChangedCallback(callback func(from, to State)) SessionOption {
	return func(s *Session) { s.callbacks.onStateChanged = callback }
}

// WithErrorCallback registers a callback for connection and device errors
// and for errors reported by the service. Use [IsTerminal] to decide whether
// a retry makes sense.
func WithErrorCallback(callback func(err error)) SessionOption {
	return func(s *Session) { s.callbacks.onError = callback }
}

// WithPartialTranscriptCallback registers a callback for interim user
// transcripts. Each call replaces the previous one.
func WithPartialTranscriptCallback(callback func(transcript string)) SessionOption {
	return func(s *Session) { s.callbacks.onPartialTranscript = callback }
}

// WithPartialResponseCallback registers a callback receiving the accumulated
// response text after every delta.
func WithPartialResponseCallback(callback func(text string)) SessionOption {
	return func(s *Session) { s.callbacks.onPartialResponse = callback }
}
