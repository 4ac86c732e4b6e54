package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-live/core/audio/miniaudio")

// Client opens the default capture and playback devices through miniaudio.
// Devices are only opened when capture or playback starts so a missing
// microphone does not prevent playback and the other way around.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

type ClientOption func(*Client)

// WithCaptureSampleRate asks the capture device for a specific rate. Devices
// that run at another rate are converted by miniaudio.
func WithCaptureSampleRate(rate int) ClientOption {
	return func(c *Client) {
		if rate > 0 {
			c.captureClient.sampleRate = uint32(rate)
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	config := malgo.ContextConfig{}
	config.ThreadPriority = malgo.ThreadPriorityRealtime

	audioCtx, err := malgo.InitContext(nil, config, func(message string) {
		logger.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %w", audio.ErrDeviceUnavailable, err)
	}

	client := &Client{
		audioContext:   audioCtx,
		captureClient:  captureClient{sampleRate: audio.DefaultDeviceSampleRate},
		playbackClient: playbackClient{sampleRate: audio.OutputSampleRate},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) CaptureSampleRate() int {
	return int(c.captureClient.sampleRate)
}

// StartCapture opens the capture device and calls onSamples with mono float
// frames from the device thread. onStopped is called when the device stops
// without StopCapture being called.
func (c *Client) StartCapture(_ context.Context, onSamples func([]float32), onStopped func(error)) error {
	return c.captureClient.Start(c.audioContext, onSamples, onStopped)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// StartPlayback opens the playback device, which pulls audio from render.
func (c *Client) StartPlayback(_ context.Context, render func([]float32)) error {
	return c.playbackClient.Start(c.audioContext, render)
}

func (c *Client) StopPlayback() error {
	return c.playbackClient.Stop()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: int(c.playbackClient.sampleRate),
		Format:     audio.EncodingFloat32,
	}
}

func (c *Client) Close() error {
	err := errors.Join(c.captureClient.Stop(), c.playbackClient.Stop())
	if uninitErr := c.audioContext.Uninit(); uninitErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to uninitialize audio context: %w", uninitErr))
	}
	c.audioContext.Free()
	return err
}
