package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV 表示数据不是 RIFF/WAVE 格式。
var ErrNotWAV = errors.New("不是有效的 WAV 数据")

// WAV 是解析后的 PCM WAV 数据。
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Data          []byte // data chunk 中的原始 PCM
}

// ParseWAV 解析 RIFF/WAVE 数据，返回 fmt 信息和 data chunk。
// 系统 TTS 生成的 WAV 头部不一定是 44 字节（可能带 LIST/fact 等 chunk），
// 因此按 chunk 逐个查找，而不是固定跳过头部。
func ParseWAV(b []byte) (*WAV, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	w := &WAV{}
	haveFmt := false
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(b) || end < body {
			// 流式写出的 WAV 的 data 长度可能未回填，取到文件末尾
			end = len(b)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("WAV fmt chunk 过短: %d 字节", end-body)
			}
			format := binary.LittleEndian.Uint16(b[body:])
			if format != 1 && format != 0xFFFE {
				return nil, fmt.Errorf("不支持的 WAV 编码: %d", format)
			}
			w.Channels = int(binary.LittleEndian.Uint16(b[body+2:]))
			w.SampleRate = int(binary.LittleEndian.Uint32(b[body+4:]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("WAV data chunk 出现在 fmt 之前")
			}
			if w.BitsPerSample != 16 {
				return nil, fmt.Errorf("不支持的采样位数: %d", w.BitsPerSample)
			}
			w.Data = b[body:end]
			return w, nil
		}

		// chunk 按偶数字节对齐
		pos = end + size%2
	}

	return nil, fmt.Errorf("WAV 缺少 data chunk")
}

// Mono 将 WAV 数据转换为单声道 float32 样本。
func (w *WAV) Mono() []float32 {
	return InterleavedToMono(w.Data, w.Channels)
}
