package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOddLength is returned when a PCM16 payload does not hold whole samples.
var ErrOddLength = errors.New("pcm16 payload has odd length")

// Resample converts samples from sourceRate to targetRate with linear
// interpolation. Output index i reads source position i*sourceRate/targetRate;
// the upper neighbour is clamped to the last sample.
//
// Equal rates return samples itself.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || targetRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return []float32{}
	}

	outLen := len(samples) * targetRate / sourceRate
	out := make([]float32, outLen)
	step := float64(sourceRate) / float64(targetRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx > last {
			idx = last
		}
		next := idx + 1
		if next > last {
			next = last
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[next]-samples[idx])*frac
	}
	return out
}

// EncodePCM16 quantizes float samples to signed 16-bit little-endian PCM.
//
// Negative samples scale by 32768 and the rest by 32767. The speech service
// decodes with the same convention so the asymmetry must stay.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(quantize(s)))
	}
	return out
}

func quantize(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	// Truncation toward zero matches the service's reference encoder.
	if s < 0 {
		return int16(float64(s) * 32768)
	}
	return int16(float64(s) * 32767)
}

// DecodePCM16 is the inverse of [EncodePCM16].
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddLength
	}

	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out, nil
}

// Float32FromBytes reads little-endian float32 frames as delivered by host
// devices configured for 32-bit float capture.
func Float32FromBytes(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// PutFloat32 writes samples as little-endian float32 frames into dst, which
// must hold at least 4*len(samples) bytes.
func PutFloat32(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}
