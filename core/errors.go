package session

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

var (
	ErrNotConnected     = errors.New("session is not connected")
	ErrAlreadyConnected = errors.New("session is already connected")
	ErrNoAudioInput     = fmt.Errorf("%w: no audio input configured", audio.ErrDeviceUnavailable)
)

// ServiceError is an error reported by the speech service in-band. It does
// not end the session.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "speech service error: " + e.Message
}

// IsTerminal reports whether err means the caller has to re-authenticate
// before connecting again. Every other session error allows a retry.
func IsTerminal(err error) bool {
	return errors.Is(err, transport.ErrAuthInvalid)
}

// IsDeviceError reports whether err comes from a host audio device.
func IsDeviceError(err error) bool {
	return errors.Is(err, audio.ErrDeviceUnavailable)
}
