package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultInboundQueue   = 256
	DefaultOutboundQueue  = 64
)

// ErrConnectTimeout is returned when the connection is not open within the
// dial timeout. The caller may retry.
var ErrConnectTimeout = errors.New("connect timeout")

type Mode string

const (
	ModeTrain Mode = "train"
	ModeExam  Mode = "exam"
)

func (m Mode) Valid() bool { return m == ModeTrain || m == ModeExam }

// Params are supplied by the caller for every connection.
type Params struct {
	Token      string
	ScenarioID string
	Mode       Mode
}

func (p Params) validate() error {
	if p.Token == "" {
		return fmt.Errorf("%w: missing token", ErrAuthInvalid)
	}
	if p.ScenarioID == "" {
		return errors.New("missing scenario id")
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", p.Mode)
	}
	return nil
}

// Dialer opens connections to the speech service. The zero value of every
// field except URL falls back to a default.
type Dialer struct {
	URL             string
	Timeout         time.Duration
	AuthInvalidCode int
	WriteTimeout    time.Duration
	InboundQueue    int
	OutboundQueue   int

	// Websocket overrides the underlying dialer, mostly for tests.
	Websocket *websocket.Dialer
}

func (d *Dialer) Dial(ctx context.Context, params Params) (*Conn, error) {
	ctx, span := tracer.Start(ctx, "dial speech service")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.scenario_id", params.ScenarioID),
		attribute.String("session.mode", string(params.Mode)),
	)

	conn, err := d.dial(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) dial(ctx context.Context, params Params) (*Conn, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	query := endpoint.Query()
	query.Set("scenario_id", params.ScenarioID)
	query.Set("mode", string(params.Mode))
	endpoint.RawQuery = query.Encode()

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wsDialer := d.Websocket
	if wsDialer == nil {
		wsDialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}

	header := http.Header{"Authorization": {"Bearer " + params.Token}}
	ws, resp, err := wsDialer.DialContext(dialCtx, endpoint.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake rejected with status %d", ErrAuthInvalid, resp.StatusCode)
		}
		if ctx.Err() == nil && isTimeout(dialCtx, err) {
			return nil, fmt.Errorf("%w after %s: %w", ErrConnectTimeout, timeout, err)
		}
		return nil, fmt.Errorf("failed to open connection to speech service: %w", err)
	}

	authInvalidCode := d.AuthInvalidCode
	if authInvalidCode == 0 {
		authInvalidCode = DefaultAuthInvalidCode
	}
	inbound := d.InboundQueue
	if inbound <= 0 {
		inbound = DefaultInboundQueue
	}
	outbound := d.OutboundQueue
	if outbound <= 0 {
		outbound = DefaultOutboundQueue
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	return newConn(ws, authInvalidCode, writeTimeout, inbound, outbound), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
