package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-live/core/audio/portaudio")

// DefaultFramesPerBuffer is 10ms at the default capture rate.
const DefaultFramesPerBuffer = 480

// Client is the PortAudio backend, used where miniaudio is not available.
// Capture uses a blocking stream read on its own goroutine so a read error
// can be reported as a lost device. Playback uses a callback stream.
type Client struct {
	framesPerBuffer int
	captureRate     int

	mu          sync.Mutex
	capture     *portaudio.Stream
	captureStop chan struct{}
	captureDone chan struct{}
	playback    *portaudio.Stream
}

func NewClient(framesPerBuffer int) (*Client, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize PortAudio: %w", audio.ErrDeviceUnavailable, err)
	}

	return &Client{
		framesPerBuffer: framesPerBuffer,
		captureRate:     audio.DefaultDeviceSampleRate,
	}, nil
}

func (c *Client) CaptureSampleRate() int {
	return c.captureRate
}

func (c *Client) StartCapture(_ context.Context, onSamples func([]float32), onStopped func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture != nil {
		return nil
	}

	in := make([]float32, c.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.captureRate), c.framesPerBuffer, in)
	if err != nil {
		return fmt.Errorf("%w: failed to open capture stream: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: failed to start capture stream: %w", audio.ErrDeviceUnavailable, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.capture = stream
	c.captureStop = stop
	c.captureDone = done

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}

			if err := stream.Read(); err != nil {
				if errors.Is(err, portaudio.InputOverflowed) {
					logger.Debug("capture stream overflowed")
					continue
				}
				select {
				case <-stop:
				default:
					onStopped(fmt.Errorf("%w: capture stream failed: %w", audio.ErrDeviceUnavailable, err))
				}
				return
			}
			onSamples(in)
		}
	}()
	return nil
}

// StopCapture waits for the pending read to return before the stream is
// closed.
func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}

	close(c.captureStop)
	<-c.captureDone

	var err error
	if stopErr := c.capture.Stop(); stopErr != nil {
		err = fmt.Errorf("failed to stop capture stream: %w", stopErr)
	}
	err = errors.Join(err, c.capture.Close())
	c.capture = nil
	return err
}

func (c *Client) StartPlayback(_ context.Context, render func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playback != nil {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(audio.OutputSampleRate), c.framesPerBuffer, func(out []float32) {
		render(out)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to open playback stream: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: failed to start playback stream: %w", audio.ErrDeviceUnavailable, err)
	}
	c.playback = stream
	return nil
}

func (c *Client) StopPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playback == nil {
		return nil
	}

	var err error
	if stopErr := c.playback.Stop(); stopErr != nil {
		err = fmt.Errorf("failed to stop playback stream: %w", stopErr)
	}
	err = errors.Join(err, c.playback.Close())
	c.playback = nil
	return err
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.OutputSampleRate,
		Format:     audio.EncodingFloat32,
	}
}

func (c *Client) Close() error {
	err := errors.Join(c.StopCapture(), c.StopPlayback())
	return errors.Join(err, portaudio.Terminate())
}
