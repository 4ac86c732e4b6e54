package capture

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
)

const (
	// DefaultChunkSamples is 100ms at the default target rate.
	DefaultChunkSamples = 1600
	DefaultQueueSize    = 64
)

var ErrAlreadyStarted = errors.New("capture already started")

// Chunk is one encoded slice of captured audio. PCM is never modified after
// the chunk is emitted.
type Chunk struct {
	Seq     uint64
	Samples int
	PCM     []byte
}

type Option func(*Pipeline)

// WithChunkSamples sets the chunk threshold in target-rate samples.
func WithChunkSamples(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.chunkSamples = n
		}
	}
}

func WithTargetRate(rate int) Option {
	return func(p *Pipeline) {
		if rate > 0 {
			p.targetRate = rate
		}
	}
}

// WithQueueSize bounds the number of device frames waiting for the worker.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// Pipeline turns device frames into fixed size PCM16 chunks.
//
// Write is safe to call from a host audio callback: it never blocks. The
// resampling and encoding happen on a dedicated worker goroutine pinned to
// its own OS thread.
type Pipeline struct {
	chunkSamples int
	targetRate   int
	queueSize    int

	mu      sync.Mutex
	current atomic.Pointer[run]

	overruns atomic.Uint64
}

type run struct {
	frames chan []float32
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		chunkSamples: DefaultChunkSamples,
		targetRate:   audio.InputSampleRate,
		queueSize:    DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) ChunkSamples() int { return p.chunkSamples }
func (p *Pipeline) TargetRate() int   { return p.targetRate }
func (p *Pipeline) IsRunning() bool   { return p.current.Load() != nil }

// Overruns returns how many device frames were dropped since creation.
func (p *Pipeline) Overruns() uint64 { return p.overruns.Load() }

// Start launches the worker. Frames written afterwards are resampled from
// sourceRate and every complete chunk is passed to emit, in capture order,
// on the worker goroutine.
func (p *Pipeline) Start(ctx context.Context, sourceRate int, emit func(context.Context, Chunk)) error {
	if sourceRate <= 0 {
		return fmt.Errorf("invalid source rate %d", sourceRate)
	}
	if emit == nil {
		emit = func(context.Context, Chunk) {}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Load() != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{
		frames: make(chan []float32, p.queueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	acc := newAccumulator(sourceRate, p.targetRate, p.chunkSamples)
	go p.work(ctx, r, acc, emit)
	p.current.Store(r)
	return nil
}

// Write copies samples into the worker queue. When the queue is full the
// frame is dropped and counted as an overrun.
func (p *Pipeline) Write(samples []float32) {
	r := p.current.Load()
	if r == nil || len(samples) == 0 {
		return
	}

	frame := make([]float32, len(samples))
	copy(frame, samples)
	select {
	case r.frames <- frame:
	default:
		if n := p.overruns.Add(1); n == 1 || n%100 == 0 {
			logger.Warn("capture queue full, dropping frame", "overruns", n)
		}
		overrunCounter.Add(context.Background(), 1)
	}
}

// Stop halts the worker and discards any partially accumulated chunk. The
// context handed to emit is cancelled first, so an emit blocked on a slow
// consumer returns. Stop waits for the worker to exit, so emit is never
// called after Stop returns.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.current.Swap(nil)
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (p *Pipeline) work(ctx context.Context, r *run, acc *accumulator, emit func(context.Context, Chunk)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-r.frames:
			for _, chunk := range acc.push(frame) {
				emit(ctx, chunk)
				chunkCounter.Add(ctx, 1)
			}
		}
	}
}

// accumulator resamples frames to the target rate and slices the result into
// chunks of exactly chunkSamples samples, keeping the remainder.
type accumulator struct {
	sourceRate   int
	targetRate   int
	chunkSamples int

	buf []float32
	seq uint64
}

func newAccumulator(sourceRate, targetRate, chunkSamples int) *accumulator {
	return &accumulator{
		sourceRate:   sourceRate,
		targetRate:   targetRate,
		chunkSamples: chunkSamples,
		buf:          make([]float32, 0, chunkSamples*2),
	}
}

func (a *accumulator) push(frame []float32) []Chunk {
	a.buf = append(a.buf, audio.Resample(frame, a.sourceRate, a.targetRate)...)

	var chunks []Chunk
	for len(a.buf) >= a.chunkSamples {
		chunks = append(chunks, Chunk{
			Seq:     a.seq,
			Samples: a.chunkSamples,
			PCM:     audio.EncodePCM16(a.buf[:a.chunkSamples]),
		})
		a.seq++
		a.buf = append(a.buf[:0], a.buf[a.chunkSamples:]...)
	}
	return chunks
}

func (a *accumulator) pending() int { return len(a.buf) }
