package speech

import (
	"context"
	"errors"
	"io"

	"github.com/iabetor/soundmirror/internal/audio"
)

var (
	// ErrUnsupported 表示当前平台或环境没有可用的语音合成能力。
	// 命令层将其转换为 success=false，而不是向调用方报错。
	ErrUnsupported = errors.New("[speech] 当前平台不支持语音合成")
	// ErrInvalidRate 表示语速不是正的有限数。
	ErrInvalidRate = errors.New("[speech] 语速必须为大于 0 的有限数")
	// ErrTextTooLong 表示文本超过允许的最大长度。
	ErrTextTooLong = errors.New("[speech] 文本过长")
)

// Engine 定义语音合成后端接口。
// 每个平台（macOS say、Windows SAPI）和每个在线/离线服务各有一个实现，
// 命令层只依赖这个接口。
type Engine interface {
	// Synthesize 将文本合成为语音，返回音频、时长和单词边界。
	Synthesize(ctx context.Context, req Request) (*Synthesis, error)
}

// VoiceLister 是可选接口，能列出指定语言可用语音的引擎实现它。
type VoiceLister interface {
	// Voices 返回 lang 可用的语音名称，没有安装语音时返回空列表而非错误。
	Voices(ctx context.Context, lang string) ([]string, error)
}

// Close 释放引擎持有的资源（如 sherpa 模型），引擎未实现 io.Closer 时什么都不做。
func Close(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// fromSamples 用单声道样本构造合成结果，时长由样本数计算。
func fromSamples(samples []float32, sampleRate int, boundaries []WordBoundary) *Synthesis {
	return &Synthesis{
		Samples:    samples,
		SampleRate: sampleRate,
		DurationMs: audio.DurationMs(len(samples), sampleRate),
		Boundaries: boundaries,
	}
}

// silence 是空文本的合成结果。
func silence() *Synthesis {
	return &Synthesis{}
}
