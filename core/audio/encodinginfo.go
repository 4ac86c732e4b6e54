package audio

import (
	"errors"
	"time"
)

const (
	// InputSampleRate is the rate of the PCM16 stream sent upstream.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of the PCM16 stream received from the
	// speech service.
	OutputSampleRate = 24000
	// DefaultDeviceSampleRate is what most capture devices run at natively.
	DefaultDeviceSampleRate = 48000
	DefaultFormat           = "linear16"
)

// ErrDeviceUnavailable is returned when a host audio device cannot be opened.
var ErrDeviceUnavailable = errors.New("device unavailable")

func InputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: InputSampleRate, Format: EncodingLinear16}
}

func OutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: OutputSampleRate, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Duration returns how long the given number of frames plays for.
func (e EncodingInfo) Duration(frames int64) time.Duration {
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(e.SampleRate)
}

// Frames returns the number of frames that fit in d, rounded down.
func (e EncodingInfo) Frames(d time.Duration) int64 {
	return int64(d) * int64(e.SampleRate) / int64(time.Second)
}

// ByteLen returns the encoded size of the given number of mono frames.
func (e EncodingInfo) ByteLen(frames int) int {
	return frames * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	case EncodingFloat32:
		return 4
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingFloat32  encodingFormat = "float32"
)
