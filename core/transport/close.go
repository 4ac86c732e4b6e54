package transport

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/events"
)

const DefaultAuthInvalidCode = 4001

var (
	// ErrAuthInvalid is terminal. The caller has to obtain a new token
	// before connecting again.
	ErrAuthInvalid = errors.New("authorization invalid")
	// ErrTransientClose covers every other close. The caller may reconnect.
	ErrTransientClose = errors.New("connection closed")
)

// CloseError describes a connection that ended for any reason other than a
// local Close.
type CloseError struct {
	Code   int
	Reason string
	Cause  events.CloseCause
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed (%s, code %d)", e.Cause, e.Code)
	}
	return fmt.Sprintf("connection closed (%s, code %d): %s", e.Cause, e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error {
	if e.Cause.Terminal() {
		return ErrAuthInvalid
	}
	return ErrTransientClose
}

// Abnormal reports whether the peer went away without a close frame.
func (e *CloseError) Abnormal() bool { return e.Cause == events.CloseAbnormal }

// CloseErr maps the final record of a connection to an error. A local close
// is not an error.
func CloseErr(closed events.Closed) error {
	if closed.Cause == events.CloseLocal {
		return nil
	}
	return &CloseError{Code: closed.Code, Reason: closed.Reason, Cause: closed.Cause}
}

// classifyClose turns the read error that ended a connection into its final
// record.
func classifyClose(err error, authInvalidCode int, local bool) events.Closed {
	var closeErr *websocket.CloseError
	hasFrame := errors.As(err, &closeErr)

	if local {
		code := websocket.CloseNormalClosure
		if hasFrame {
			code = closeErr.Code
		}
		return events.NewClosed(code, "", events.CloseLocal)
	}

	if !hasFrame {
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		return events.NewClosed(websocket.CloseAbnormalClosure, reason, events.CloseAbnormal)
	}

	switch closeErr.Code {
	case authInvalidCode:
		return events.NewClosed(closeErr.Code, closeErr.Text, events.CloseAuthInvalid)
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		return events.NewClosed(closeErr.Code, closeErr.Text, events.CloseNormal)
	case websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived:
		return events.NewClosed(closeErr.Code, closeErr.Text, events.CloseAbnormal)
	default:
		return events.NewClosed(closeErr.Code, closeErr.Text, events.CloseTransient)
	}
}
