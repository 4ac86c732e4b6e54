package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/events"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrClosed = errors.New("connection is closed")

const closeGracePeriod = time.Second

// DefaultWriteTimeout bounds a single socket write. A write that stalls
// longer, on a half-open connection for instance, ends the connection.
const DefaultWriteTimeout = 10 * time.Second

// Conn is one open connection to the speech service.
//
// Inbound records are delivered on Events in arrival order. The last record
// is always an events.Closed, after which the channel is closed. Consumers
// must keep draining Events until then.
type Conn struct {
	ws              *websocket.Conn
	authInvalidCode int
	writeTimeout    time.Duration

	state atomic.Int32

	events   chan events.Inbound
	outbound chan events.Outbound

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	closedLocally atomic.Bool
}

func newConn(ws *websocket.Conn, authInvalidCode int, writeTimeout time.Duration, inboundQueue, outboundQueue int) *Conn {
	c := &Conn{
		ws:              ws,
		authInvalidCode: authInvalidCode,
		writeTimeout:    writeTimeout,
		events:          make(chan events.Inbound, inboundQueue),
		outbound:        make(chan events.Outbound, outboundQueue),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	c.state.Store(int32(StateOpen))

	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Conn) State() State { return State(c.state.Load()) }

// Events yields decoded inbound records.
func (c *Conn) Events() <-chan events.Inbound { return c.events }

// Done is closed once the read loop has exited and the socket is released.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues msg for the writer. Records are written in the order Send is
// called. Send blocks while the outbound queue is full, until ctx is done or
// the connection closes.
func (c *Conn) Send(ctx context.Context, msg events.Outbound) error {
	if c.State() != StateOpen {
		return ErrClosed
	}

	select {
	case c.outbound <- msg:
		return nil
	case <-c.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a normal close frame and releases the socket without waiting
// for the peer. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closedLocally.CompareAndSwap(false, true) {
		return nil
	}
	c.state.Store(int32(StateClosed))
	c.shutdown()

	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod),
	)
	if closeErr := c.ws.Close(); closeErr != nil && !errors.Is(closeErr, websocket.ErrCloseSent) {
		err = errors.Join(err, closeErr)
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *Conn) shutdown() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			closed := classifyClose(err, c.authInvalidCode, c.closedLocally.Load())
			c.state.Store(int32(StateClosed))
			c.shutdown()
			_ = c.ws.Close()

			if closed.Cause != events.CloseLocal {
				logger.Info("connection closed",
					"code", closed.Code,
					"reason", closed.Reason,
					"cause", closed.Cause.String())
			}
			c.events <- closed
			return
		}

		if messageType != websocket.TextMessage {
			c.drop(parseError("unexpected frame type %d", messageType), len(data))
			continue
		}

		event, err := DecodeInbound(data)
		if err != nil {
			c.drop(err, len(data))
			continue
		}

		select {
		case c.events <- event:
		case <-c.stop:
			// Closed locally; everything but the final record is dropped.
		}
	}
}

func (c *Conn) drop(err error, size int) {
	droppedRecordCounter.Add(context.Background(), 1)
	logger.Warn("dropping inbound record", "bytes", size, "error", err)
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.stop:
			return
		case msg := <-c.outbound:
			data, err := EncodeOutbound(msg)
			if err != nil {
				logger.Error("failed to encode outbound record", "error", err)
				continue
			}
			if c.writeTimeout > 0 {
				_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				// The read loop observes the broken socket and reports the close.
				logger.Warn("failed to write outbound record", "kind", string(msg.Kind()), "error", err)
				c.shutdown()
				return
			}
			if msg.Kind() == events.KindAudioFrame {
				sentChunkCounter.Add(context.Background(), 1)
			}
		}
	}
}
