package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

// ErrDecode is returned for inbound chunks that are not valid PCM16.
var ErrDecode = errors.New("playback decode failed")

// Scheduled is the half open window [Start, End) a buffer occupies on the
// output clock, in frames.
type Scheduled struct {
	Start int64
	End   int64
}

func (s Scheduled) Frames() int64 { return s.End - s.Start }

func (s Scheduled) Overlaps(other Scheduled) bool {
	return s.Start < other.End && other.Start < s.End
}

type buffer struct {
	start   int64
	samples []float32
}

func (b buffer) end() int64 { return b.start + int64(len(b.samples)) }

// Scheduler places decoded audio buffers back to back on a frame clock.
//
// The clock only advances through Render, which the output device calls from
// its own thread, so scheduling follows the device clock rather than wall
// time. All methods are safe for concurrent use.
type Scheduler struct {
	info audio.EncodingInfo

	mu        sync.Mutex
	now       int64
	nextStart int64
	queue     []buffer
	drained   chan struct{}
}

func New(sampleRate int) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = audio.OutputSampleRate
	}
	return &Scheduler{
		info: audio.EncodingInfo{SampleRate: sampleRate, Format: audio.EncodingLinear16},
	}
}

func (s *Scheduler) EncodingInfo() audio.EncodingInfo { return s.info }

// Now returns the number of frames rendered so far.
func (s *Scheduler) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Position returns the output clock as a duration.
func (s *Scheduler) Position() time.Duration {
	return s.info.Duration(s.Now())
}

// Enqueue decodes pcm and schedules it to start at max(now, nextStart).
// A chunk that fails to decode is dropped and nothing else is affected.
func (s *Scheduler) Enqueue(pcm []byte) (Scheduled, error) {
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		decodeFailureCounter.Add(context.Background(), 1)
		logger.Warn("dropping undecodable audio chunk", "bytes", len(pcm), "error", err)
		return Scheduled{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.now, s.nextStart)
	if len(samples) == 0 {
		return Scheduled{Start: start, End: start}, nil
	}

	b := buffer{start: start, samples: samples}
	s.queue = append(s.queue, b)
	s.nextStart = b.end()
	return Scheduled{Start: b.start, End: b.end()}, nil
}

// Render fills out with the audio scheduled for the next len(out) frames and
// advances the clock. Frames with nothing scheduled are silent. Overlapping
// buffers, which only occur after a flush, are mixed.
func (s *Scheduler) Render(out []float32) {
	clear(out)

	s.mu.Lock()
	defer s.mu.Unlock()

	windowStart := s.now
	windowEnd := windowStart + int64(len(out))
	overlapping := 0
	for _, b := range s.queue {
		if b.start >= windowEnd {
			// queue is ordered by start except after a flush, keep scanning
			continue
		}
		if b.end() <= windowStart {
			continue
		}

		from := max(b.start, windowStart)
		to := min(b.end(), windowEnd)
		src := b.samples[from-b.start : to-b.start]
		dst := out[from-windowStart : to-windowStart]
		for i, v := range src {
			dst[i] += v
		}
		overlapping++
	}
	if overlapping > 1 {
		for i, v := range out {
			out[i] = min(max(v, -1), 1)
		}
	}

	s.now = windowEnd
	s.dropFinished()
}

// RenderPCM16 renders frames frames of encoded PCM16 for devices that take
// integer samples.
func (s *Scheduler) RenderPCM16(frames int) []byte {
	buf := make([]float32, frames)
	s.Render(buf)
	return audio.EncodePCM16(buf)
}

// Flush drops every buffer that has not started yet and resets nextStart. A
// buffer that is already playing keeps its place and finishes. It returns the
// number of buffers dropped.
//
// Windows never overlap between flushes. The first buffer enqueued after a
// flush starts at Now and may overlap the tail of the kept buffer; Render
// mixes the two.
func (s *Scheduler) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	dropped := 0
	for _, b := range s.queue {
		if b.start < s.now {
			kept = append(kept, b)
			continue
		}
		dropped++
	}
	clear(s.queue[len(kept):])
	s.queue = kept
	s.nextStart = 0
	s.signalIfDrained()

	if dropped > 0 {
		flushedCounter.Add(context.Background(), int64(dropped))
	}
	return dropped
}

// Reset drops every buffer, including one that is already playing, and
// resets nextStart. It is for when the output device is gone and nothing will
// render the rest. It returns the number of buffers dropped.
func (s *Scheduler) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.queue)
	clear(s.queue)
	s.queue = s.queue[:0]
	s.nextStart = 0
	s.signalIfDrained()

	if dropped > 0 {
		flushedCounter.Add(context.Background(), int64(dropped))
	}
	return dropped
}

// IsPlaying reports whether any buffer is playing or waiting to play.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// Pending returns the number of buffers that have not started yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, b := range s.queue {
		if b.start >= s.now {
			pending++
		}
	}
	return pending
}

// Windows returns the windows of every queued buffer in enqueue order.
func (s *Scheduler) Windows() []Scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows := make([]Scheduled, len(s.queue))
	for i, b := range s.queue {
		windows[i] = Scheduled{Start: b.start, End: b.end()}
	}
	return windows
}

// Drained returns a channel that is closed the next time the queue is empty.
// If nothing is queued the returned channel is already closed.
func (s *Scheduler) Drained() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drained == nil {
		s.drained = make(chan struct{})
	}
	ch := s.drained
	s.signalIfDrained()
	return ch
}

func (s *Scheduler) dropFinished() {
	kept := s.queue[:0]
	for _, b := range s.queue {
		if b.end() > s.now {
			kept = append(kept, b)
		}
	}
	clear(s.queue[len(kept):])
	s.queue = kept
	s.signalIfDrained()
}

func (s *Scheduler) signalIfDrained() {
	if len(s.queue) == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}
