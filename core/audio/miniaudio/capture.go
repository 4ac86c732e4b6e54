package miniaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type captureHandlers struct {
	onSamples func([]float32)
	onStopped func(error)
}

type captureClient struct {
	sampleRate uint32

	mu     sync.Mutex
	device *malgo.Device

	// handlers is read from the device thread, which must never wait on mu:
	// Stop holds it while miniaudio waits for the callback to return.
	handlers atomic.Pointer[captureHandlers]
	stopping atomic.Bool
}

func (c *captureClient) Start(audioContext *malgo.AllocatedContext, onSamples func([]float32), onStopped func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = c.sampleRate
	config.Capture.Format = format
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = c.sampleRate / 100 // 10ms
	config.Periods = 3

	c.handlers.Store(&captureHandlers{onSamples: onSamples, onStopped: onStopped})
	c.stopping.Store(false)

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			if handlers := c.handlers.Load(); handlers != nil && handlers.onSamples != nil {
				handlers.onSamples(audio.Float32FromBytes(pInput[:n]))
			}
		},
		Stop: func() {
			if c.stopping.Load() {
				return
			}
			if handlers := c.handlers.Swap(nil); handlers != nil && handlers.onStopped != nil {
				handlers.onStopped(fmt.Errorf("%w: capture device stopped", audio.ErrDeviceUnavailable))
			}
		},
	})
	if err != nil {
		c.handlers.Store(nil)
		return fmt.Errorf("%w: failed to initialize capture device: %w", audio.ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		c.handlers.Store(nil)
		device.Uninit()
		return fmt.Errorf("%w: failed to start capture device: %w", audio.ErrDeviceUnavailable, err)
	}

	c.device = device
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	c.stopping.Store(true)
	var err error
	if c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}
	c.device.Uninit()
	c.device = nil
	c.handlers.Store(nil)
	return err
}
