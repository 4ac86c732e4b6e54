package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// interruptSendTimeout bounds how long Interrupt waits for room in the
// outbound queue. Local playback is already flushed by then.
const interruptSendTimeout = time.Second

// Session is one voice session with the speech service.
//
// Inbound records are applied one at a time by a single event loop per
// connection. Every transition happens under the session lock and callbacks
// are delivered after it is released.
type Session struct {
	id     string
	dialer Dialer
	params transport.Params

	connectTimeout time.Duration
	chunkSamples   int

	input  AudioInput
	output AudioOutput

	capture *capture.Pipeline
	player  *playback.Scheduler

	callbacks callbacks

	mu    sync.Mutex
	state State
	conn  Conn
	// gen changes every time a connection is attached or torn down so that
	// a stale event loop can tell its records no longer apply.
	gen   uint64
	ready chan error

	capturing  bool
	captureRun uint64
	playing    bool

	partialUser     string
	partialResponse string
	coachHint       string
	// discardResponse drops deltas of a cancelled response until the next
	// response starts.
	discardResponse bool
	lastErr         error
	transcript      transcript
}

func New(dialer Dialer, params transport.Params, opts ...SessionOption) *Session {
	s := &Session{
		id:             uuid.NewString(),
		dialer:         dialer,
		params:         params,
		connectTimeout: transport.DefaultConnectTimeout,
		chunkSamples:   capture.DefaultChunkSamples,
		state:          StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.capture = capture.New(
		capture.WithChunkSamples(s.chunkSamples),
		capture.WithTargetRate(audio.InputSampleRate),
	)
	s.player = playback.New(audio.OutputSampleRate)
	return s
}

func (s *Session) ID() string { return s.id }

// Connect dials the service and blocks until it accepts the session, the
// connect timeout passes or ctx is done. On failure the session is back in
// Disconnected and Connect may be called again.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", s.id),
		attribute.String("session.scenario_id", s.params.ScenarioID),
		attribute.String("session.mode", string(s.params.Mode)),
	)

	err := s.connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) connect(ctx context.Context) error {
	var pending notifications
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.setState(StateConnecting, &pending)
	s.lastErr = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.callbacks.emit(pending)

	timer := time.NewTimer(s.connectTimeout)
	defer timer.Stop()
	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx, s.params)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, transport.ErrConnectTimeout) {
			err = fmt.Errorf("%w: %w", transport.ErrConnectTimeout, err)
		}
		s.teardown(gen, err)
		return err
	}

	ready := make(chan error, 1)
	s.mu.Lock()
	if s.gen != gen {
		// Disconnect was called while dialing.
		s.mu.Unlock()
		_ = conn.Close()
		go drainEvents(conn)
		return ErrNotConnected
	}
	s.conn = conn
	s.ready = ready
	s.mu.Unlock()

	go s.eventLoop(conn, gen)

	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	case <-timer.C:
		err := fmt.Errorf("%w: no session after %s", transport.ErrConnectTimeout, s.connectTimeout)
		s.teardown(gen, err)
		return err
	case <-ctx.Done():
		s.teardown(gen, ctx.Err())
		return ctx.Err()
	}

	trace.SpanFromContext(ctx).AddEvent("session ready")
	s.startPlayback(ctx, gen)
	return nil
}

// Disconnect releases the devices, drops queued playback and closes the
// connection without waiting for the service.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.mu.Unlock()

	return s.teardown(gen, nil)
}

// StartListening opens the microphone and starts streaming audio. A device
// that cannot be opened is reported and leaves the session as it was.
func (s *Session) StartListening(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start listening")
	defer span.End()

	err := s.startListening(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) startListening(ctx context.Context) error {
	var pending notifications
	s.mu.Lock()
	if !s.state.IsConnected() || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.capturing {
		if s.state == StateConnected {
			s.setState(StateListening, &pending)
		}
		s.mu.Unlock()
		s.callbacks.emit(pending)
		return nil
	}
	if s.input == nil {
		s.lastErr = ErrNoAudioInput
		pending.add(errorRaised{err: ErrNoAudioInput})
		s.mu.Unlock()
		s.callbacks.emit(pending)
		return ErrNoAudioInput
	}

	conn := s.conn
	gen := s.gen
	s.captureRun++
	run := s.captureRun
	s.capturing = true
	s.mu.Unlock()

	// The device is opened without the lock so inbound records keep flowing.
	err := s.openCapture(ctx, conn, gen, run)

	s.mu.Lock()
	switch {
	case err != nil:
		s.capturing = false
		s.lastErr = err
		pending.add(errorRaised{err: err})
	case s.gen != gen || s.captureRun != run:
		// Torn down or stopped while the device was opening.
		s.mu.Unlock()
		s.releaseCapture()
		return ErrNotConnected
	case s.state == StateConnected:
		s.setState(StateListening, &pending)
	}
	s.mu.Unlock()
	s.callbacks.emit(pending)
	return err
}

func (s *Session) openCapture(ctx context.Context, conn Conn, gen, run uint64) error {
	// ctx is cancelled when capture stops, which releases a send stuck
	// behind a full outbound queue.
	emit := func(ctx context.Context, chunk capture.Chunk) {
		if err := conn.Send(ctx, events.NewAudioFrame(chunk.Seq, chunk.PCM)); err != nil {
			logger.Debug("dropping captured chunk", "seq", chunk.Seq, "error", err)
		}
	}
	if err := s.capture.Start(context.WithoutCancel(ctx), s.input.CaptureSampleRate(), emit); err != nil {
		return fmt.Errorf("failed to start capture pipeline: %w", err)
	}

	onStopped := func(err error) { go s.handleDeviceLost(gen, run, err) }
	if err := s.input.StartCapture(context.WithoutCancel(ctx), s.capture.Write, onStopped); err != nil {
		s.capture.Stop()
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
		return err
	}
	return nil
}

// StopListening closes the microphone. Queued playback is not affected.
func (s *Session) StopListening() error {
	var pending notifications
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return nil
	}
	s.capturing = false
	s.captureRun++
	if s.state == StateListening {
		s.setState(StateConnected, &pending)
	}
	s.mu.Unlock()

	err := s.releaseCapture()
	s.callbacks.emit(pending)
	return err
}

// Interrupt stops the current response right away: queued playback is
// dropped, the state returns to Connected and the service is told to stop.
// It does not wait for the service to acknowledge.
func (s *Session) Interrupt() error {
	var pending notifications
	s.mu.Lock()
	if !s.state.IsConnected() || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.cancelResponse(&pending)
	s.setState(StateConnected, &pending)
	conn := s.conn
	s.mu.Unlock()
	s.callbacks.emit(pending)

	ctx, cancel := context.WithTimeout(context.Background(), interruptSendTimeout)
	defer cancel()
	if err := conn.Send(ctx, events.NewInterrupt()); err != nil {
		return fmt.Errorf("failed to send interrupt: %w", err)
	}
	return nil
}

func (s *Session) eventLoop(conn Conn, gen uint64) {
	for event := range conn.Events() {
		s.handle(event, gen)
	}
}

func drainEvents(conn Conn) {
	for range conn.Events() {
	}
}

func (s *Session) handle(event events.Inbound, gen uint64) {
	var pending notifications
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}

	if closed, ok := event.(events.Closed); ok {
		s.mu.Unlock()
		s.handleClosed(closed, gen)
		return
	}

	s.apply(event, &pending)
	s.mu.Unlock()
	s.callbacks.emit(pending)
}

// apply runs one transition. It must be called with the lock held.
func (s *Session) apply(event events.Inbound, pending *notifications) {
	switch e := event.(type) {
	case events.SessionReady:
		if s.state == StateConnecting {
			s.setState(StateConnected, pending)
			s.signalReady(nil)
		}

	case events.SpeechStarted:
		if !s.state.IsConnected() {
			return
		}
		// Barge-in: the user talks over the assistant.
		if s.state == StateSpeaking || s.state == StateProcessing || s.player.IsPlaying() {
			s.cancelResponse(pending)
		}
		s.setState(StateListening, pending)

	case events.SpeechStopped:
		if s.state == StateListening {
			s.setState(StateProcessing, pending)
		}

	case events.UserTranscript:
		if e.IsFinal {
			s.partialUser = ""
			s.addRecord(RoleUser, e.Text, e.Timestamp(), pending)
			return
		}
		s.partialUser = e.Text
		pending.add(partialTranscript{text: e.Text})

	case events.ResponseStarted:
		s.discardResponse = false
		s.partialResponse = ""
		if s.state.IsConnected() {
			s.setState(StateSpeaking, pending)
		}

	case events.TextDelta:
		if s.discardResponse {
			return
		}
		s.partialResponse += e.Delta
		pending.add(partialResponse{text: s.partialResponse})

	case events.TextDone:
		if s.discardResponse {
			return
		}
		text := e.Text
		if text == "" {
			text = s.partialResponse
		}
		s.partialResponse = ""
		s.addRecord(RoleAssistant, text, e.Timestamp(), pending)

	case events.AudioDelta:
		if s.discardResponse {
			return
		}
		// Decode failures only cost this chunk; the scheduler logs them.
		_, _ = s.player.Enqueue(e.Audio)

	case events.AudioDone:
		logger.Debug("response audio complete", "pending_buffers", s.player.Pending())

	case events.ResponseDone:
		if s.discardResponse {
			return
		}
		if s.state == StateSpeaking {
			s.setState(StateConnected, pending)
		}

	case events.CoachHint:
		s.coachHint = e.Hint
		s.addRecord(RoleCoach, e.Hint, e.Timestamp(), pending)

	case events.ResponseCancelled:
		s.cancelResponse(pending)
		if s.state == StateSpeaking || s.state == StateProcessing {
			s.setState(StateConnected, pending)
		}

	case events.Error:
		err := &ServiceError{Message: e.Message}
		logger.Warn("speech service reported an error", "message", e.Message)
		s.lastErr = err
		pending.add(errorRaised{err: err})
	}
}

func (s *Session) handleClosed(closed events.Closed, gen uint64) {
	err := transport.CloseErr(closed)
	if err == nil {
		err = transport.ErrTransientClose
	}
	s.teardown(gen, err)
}

// handleDeviceLost stops capture after the microphone went away. The session
// itself stays up so the user can start listening again.
func (s *Session) handleDeviceLost(gen, run uint64, cause error) {
	var pending notifications
	s.mu.Lock()
	if s.gen != gen || s.captureRun != run || !s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.captureRun++
	err := fmt.Errorf("%w: capture device lost", audio.ErrDeviceUnavailable)
	if cause != nil {
		err = fmt.Errorf("%w: capture device lost: %w", audio.ErrDeviceUnavailable, cause)
	}
	s.lastErr = err
	if s.state == StateListening {
		s.setState(StateConnected, &pending)
	}
	pending.add(errorRaised{err: err})
	s.mu.Unlock()

	if closeErr := s.releaseCapture(); closeErr != nil {
		logger.Debug("failed to stop lost capture device", "error", closeErr)
	}
	s.callbacks.emit(pending)
}

// teardown detaches the connection of generation gen and releases every
// local resource. cause is nil for a requested disconnect.
func (s *Session) teardown(gen uint64, cause error) error {
	var pending notifications
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	conn := s.conn
	s.conn = nil
	wasCapturing := s.capturing
	s.capturing = false
	s.captureRun++
	wasPlaying := s.playing
	s.playing = false

	// The output device stops below, so nothing would finish a playing
	// buffer.
	s.player.Reset()
	s.partialResponse = ""
	s.partialUser = ""
	s.discardResponse = false
	if cause != nil {
		s.lastErr = cause
		pending.add(errorRaised{err: cause})
	}
	if cause == nil {
		s.signalReady(ErrNotConnected)
	} else {
		s.signalReady(cause)
	}
	s.setState(StateDisconnected, &pending)
	s.mu.Unlock()

	// The connection goes first so a capture worker blocked on Send is
	// released before capture is stopped.
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Debug("failed to close connection", "error", err)
		}
	}
	var errs error
	if wasCapturing {
		errs = errors.Join(errs, s.releaseCapture())
	}
	if wasPlaying && s.output != nil {
		if err := s.output.StopPlayback(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop playback: %w", err))
		}
	}

	if cause != nil {
		logger.Info("session ended", "session_id", s.id, "error", cause, "terminal", IsTerminal(cause))
	}
	// Callbacks go after the devices are released so a retry from within a
	// callback starts from a clean slate.
	s.callbacks.emit(pending)
	return errs
}

func (s *Session) releaseCapture() error {
	var errs error
	if s.input != nil {
		if err := s.input.StopCapture(); err != nil {
			errs = fmt.Errorf("failed to stop capture device: %w", err)
		}
	}
	s.capture.Stop()
	return errs
}

func (s *Session) startPlayback(ctx context.Context, gen uint64) {
	if s.output == nil {
		return
	}

	err := s.output.StartPlayback(context.WithoutCancel(ctx), s.player.Render)

	var pending notifications
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		if err == nil {
			_ = s.output.StopPlayback()
		}
		return
	}
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
		s.lastErr = err
		pending.add(errorRaised{err: err})
	} else {
		s.playing = true
	}
	s.mu.Unlock()
	s.callbacks.emit(pending)
}

// cancelResponse drops everything of the current response that has not
// been heard yet. It must be called with the lock held.
func (s *Session) cancelResponse(pending *notifications) {
	if dropped := s.player.Flush(); dropped > 0 {
		logger.Debug("flushed playback", "dropped_buffers", dropped)
	}
	s.discardResponse = true
	if s.partialResponse != "" {
		s.partialResponse = ""
		pending.add(partialResponse{text: ""})
	}
}

func (s *Session) addRecord(role Role, text string, at time.Time, pending *notifications) {
	record := newRecord(role, text, at)
	s.transcript.append(record)
	pending.add(recordAdded{record: record})
}

func (s *Session) setState(to State, pending *notifications) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	logger.Debug("session state changed", "session_id", s.id, "from", from.String(), "to", to.String())
	pending.add(stateChanged{from: from, to: to})
}

func (s *Session) signalReady(err error) {
	if s.ready == nil {
		return
	}
	s.ready <- err
	s.ready = nil
}
