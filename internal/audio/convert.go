package audio

import (
	"encoding/binary"
	"math"
)

// Int16ToFloat32 将 PCM int16 样本转换为 [-1.0, 1.0] 范围的 float32。
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / math.MaxInt16
	}
	return out
}

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		// 钳位到 [-1.0, 1.0]
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * math.MaxInt16)
	}
	return out
}

// BytesToInt16 将小端字节切片转换为 int16 样本，末尾不足 2 字节的部分丢弃。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// BytesToFloat32 将单声道 signed 16-bit LE PCM 字节直接转换为 float32。
func BytesToFloat32(b []byte) []float32 {
	return Int16ToFloat32(BytesToInt16(b))
}

// Float32ToBytes 将 float32 样本直接转换为 signed 16-bit LE PCM 字节。
func Float32ToBytes(in []float32) []byte {
	return Int16ToBytes(Float32ToInt16(in))
}

// InterleavedToMono 将多声道交错的 signed 16-bit LE PCM 混合为单声道 float32。
// 不完整的尾部帧会被截掉。
func InterleavedToMono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return BytesToFloat32(pcm)
	}

	bytesPerFrame := 2 * channels
	numFrames := len(pcm) / bytesPerFrame
	samples := make([]float32, numFrames)

	for i := 0; i < numFrames; i++ {
		offset := i * bytesPerFrame
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[offset+2*c:])))
		}
		samples[i] = sum / float32(channels) / 32768.0
	}
	return samples
}

// DurationMs 根据样本数和采样率计算音频时长（毫秒）。
func DurationMs(numSamples, sampleRate int) uint64 {
	if numSamples <= 0 || sampleRate <= 0 {
		return 0
	}
	return uint64(numSamples) * 1000 / uint64(sampleRate)
}
