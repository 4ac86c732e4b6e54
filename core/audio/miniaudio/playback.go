package miniaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type playbackClient struct {
	sampleRate uint32

	mu     sync.Mutex
	device *malgo.Device

	render atomic.Pointer[func([]float32)]
	// scratch is only touched from the device thread.
	scratch []float32
}

func (c *playbackClient) Start(audioContext *malgo.AllocatedContext, render func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = c.sampleRate
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = c.sampleRate / 50 // 20ms
	config.Periods = 3

	c.render.Store(&render)

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.processAudio(bytesPerFrame),
	})
	if err != nil {
		c.render.Store(nil)
		return fmt.Errorf("%w: failed to initialize playback device: %w", audio.ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		c.render.Store(nil)
		device.Uninit()
		return fmt.Errorf("%w: failed to start playback device: %w", audio.ErrDeviceUnavailable, err)
	}

	c.device = device
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	var err error
	if c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop playback device: %w", stopErr)
		}
	}
	c.device.Uninit()
	c.device = nil
	c.render.Store(nil)
	return err
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		frames := int(frameCount)
		if len(pOutput) < frames*bytesPerFrame {
			frames = len(pOutput) / bytesPerFrame
		}
		if cap(c.scratch) < frames {
			c.scratch = make([]float32, frames)
		}
		out := c.scratch[:frames]

		if render := c.render.Load(); render != nil {
			(*render)(out)
		} else {
			clear(out)
		}
		audio.PutFloat32(pOutput, out)
	}
}
