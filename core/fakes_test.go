package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

type fakeConn struct {
	events    chan events.Inbound
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	sent   []events.Outbound
	closed bool
	// stalled makes Send block like a socket that stopped taking writes.
	stalled  bool
	attempts int
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan events.Inbound, 128), done: make(chan struct{})}
}

func (c *fakeConn) Events() <-chan events.Inbound { return c.events }

func (c *fakeConn) Send(ctx context.Context, msg events.Outbound) error {
	c.mu.Lock()
	c.attempts++
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if c.stalled {
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return transport.ErrClosed
		}
	}
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) stall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = true
}

func (c *fakeConn) sendAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeConn) Close() error {
	c.finish(events.NewClosed(1000, "", events.CloseLocal))
	return nil
}

func (c *fakeConn) push(event events.Inbound) { c.events <- event }

func (c *fakeConn) remoteClose(code int, cause events.CloseCause) {
	c.finish(events.NewClosed(code, "closed by service", cause))
}

func (c *fakeConn) finish(closed events.Closed) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.events <- closed
		close(c.events)
	})
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentMessages() []events.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Outbound(nil), c.sent...)
}

func (c *fakeConn) sentAudio() []events.AudioFrame {
	var frames []events.AudioFrame
	for _, msg := range c.sentMessages() {
		if frame, ok := msg.(events.AudioFrame); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	params []transport.Params
	err    error
}

func (d *fakeDialer) Dial(_ context.Context, params transport.Params) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = append(d.params, params)
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) conn(t *testing.T, index int) *fakeConn {
	t.Helper()
	var conn *fakeConn
	eventually(t, "dialed connection", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.conns) > index {
			conn = d.conns[index]
			return true
		}
		return false
	})
	return conn
}

type fakeInput struct {
	rate int

	mu        sync.Mutex
	onSamples func([]float32)
	onStopped func(error)
	startErr  error
	starts    int
	stops     int
}

func (i *fakeInput) CaptureSampleRate() int { return i.rate }

func (i *fakeInput) StartCapture(_ context.Context, onSamples func([]float32), onStopped func(error)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startErr != nil {
		return i.startErr
	}
	i.onSamples = onSamples
	i.onStopped = onStopped
	i.starts++
	return nil
}

func (i *fakeInput) StopCapture() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onSamples = nil
	i.onStopped = nil
	i.stops++
	return nil
}

func (i *fakeInput) capturing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.onSamples != nil
}

func (i *fakeInput) write(samples []float32) {
	i.mu.Lock()
	onSamples := i.onSamples
	i.mu.Unlock()
	if onSamples != nil {
		onSamples(samples)
	}
}

func (i *fakeInput) lose(err error) {
	i.mu.Lock()
	onStopped := i.onStopped
	i.onSamples = nil
	i.mu.Unlock()
	if onStopped != nil {
		onStopped(err)
	}
}

type fakeOutput struct {
	mu     sync.Mutex
	render func([]float32)
	stops  int
}

func (o *fakeOutput) StartPlayback(_ context.Context, render func([]float32)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.render = render
	return nil
}

func (o *fakeOutput) StopPlayback() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.render = nil
	o.stops++
	return nil
}

func (o *fakeOutput) renderFrames(n int) []float32 {
	o.mu.Lock()
	render := o.render
	o.mu.Unlock()
	out := make([]float32, n)
	if render != nil {
		render(out)
	}
	return out
}

type callbackRecorder struct {
	mu          sync.Mutex
	transitions [][2]State
	records     []Record
	errs        []error
	partials    []string
	responses   []string
}

func (r *callbackRecorder) options() []SessionOption {
	return []SessionOption{
		WithStateChangedCallback(func(from, to State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transitions = append(r.transitions, [2]State{from, to})
		}),
		WithRecordCallback(func(record Record) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.records = append(r.records, record)
		}),
		WithErrorCallback(func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		}),
		WithPartialTranscriptCallback(func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.partials = append(r.partials, text)
		}),
		WithPartialResponseCallback(func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.responses = append(r.responses, text)
		}),
	}
}

func (r *callbackRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []State
	for _, transition := range r.transitions {
		states = append(states, transition[1])
	}
	return states
}

func (r *callbackRecorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *callbackRecorder) recorded() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

func eventually(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testParams() transport.Params {
	return transport.Params{Token: "token", ScenarioID: "scenario-1", Mode: transport.ModeTrain}
}

type harness struct {
	session  *Session
	dialer   *fakeDialer
	conn     *fakeConn
	input    *fakeInput
	output   *fakeOutput
	recorder *callbackRecorder
	syncs    int
}

func connectHarness(t *testing.T, opts ...SessionOption) *harness {
	t.Helper()
	h := &harness{
		dialer:   &fakeDialer{},
		input:    &fakeInput{rate: 16000},
		output:   &fakeOutput{},
		recorder: &callbackRecorder{},
	}
	all := append([]SessionOption{WithAudioInput(h.input), WithAudioOutput(h.output)}, h.recorder.options()...)
	h.session = New(h.dialer, testParams(), append(all, opts...)...)

	result := make(chan error, 1)
	go func() { result <- h.session.Connect(context.Background()) }()
	h.conn = h.dialer.conn(t, 0)
	h.conn.push(events.NewSessionReady())

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("unexpected connect error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out connecting")
	}
	t.Cleanup(func() { _ = h.session.Disconnect() })
	return h
}

// sync pushes a coach hint and waits for it, which guarantees every record
// pushed before it has been applied.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	h.syncs++
	marker := fmt.Sprintf("sync-%d", h.syncs)
	h.conn.push(events.NewCoachHint(marker))
	eventually(t, "event loop to catch up", func() bool {
		return h.session.CoachHint() == marker
	})
}

func (h *harness) waitState(t *testing.T, state State) {
	t.Helper()
	eventually(t, "state "+state.String(), func() bool {
		return h.session.State() == state
	})
}
