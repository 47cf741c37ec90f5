package audio

import "encoding/binary"

// BytesToInt16 converts 16-bit signed little-endian PCM bytes to samples.
// Any trailing odd byte is dropped.
func BytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples
}

// Int16ToBytes converts samples back to 16-bit signed little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// ToFloat32 converts int16 samples to float32 normalised to [-1.0, 1.0).
func ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// FromFloat32 converts normalised float32 samples back to int16, rounding to
// the nearest integer and clamping to the int16 range.
func FromFloat32(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768.0
		if v >= 0 {
			v += 0.5
		} else {
			v -= 0.5
		}
		switch {
		case v > 32767:
			out[i] = 32767
		case v < -32768:
			out[i] = -32768
		default:
			out[i] = int16(v)
		}
	}
	return out
}

// DownmixMono collapses interleaved multi-channel samples into mono by
// averaging each frame in floating point. The result has
// floor(len(samples)/channels) samples; a trailing incomplete frame is
// dropped. channels <= 1 returns the input unchanged.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
