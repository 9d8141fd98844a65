package speech

import (
	"context"
	"fmt"
	"math"

	"github.com/iabetor/soundmirror/internal/lang"
)

// DefaultMsPerWord 是估算引擎在语速 1.0 时每个单词的时长。
const DefaultMsPerWord = 300

// EstimateEngine 不发声，只按单词数估算时长：
// duration = round(单词数 × msPerWord ÷ rate)，不返回单词边界。
// 用于没有真实 TTS 的开发环境，以及前端动画的离线调试。
type EstimateEngine struct {
	msPerWord float64
}

// NewEstimateEngine 创建估算引擎，msPerWord <= 0 时使用 DefaultMsPerWord。
func NewEstimateEngine(msPerWord int) *EstimateEngine {
	if msPerWord <= 0 {
		msPerWord = DefaultMsPerWord
	}
	return &EstimateEngine{msPerWord: float64(msPerWord)}
}

// Synthesize 实现 Engine 接口。
func (e *EstimateEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if err := Validate(req, 0); err != nil {
		return nil, err
	}
	return &Synthesis{
		DurationMs: estimateDuration(CountWords(req.Text), e.msPerWord, req.Rate),
		Boundaries: []WordBoundary{},
	}, nil
}

// maxDurationMs 是 uint64 能表示的上限（2^64），超过它的估算值按上限饱和。
const maxDurationMs = float64(1 << 64)

// estimateDuration 四舍五入到毫秒。有单词时至少 1ms，极小的语速饱和到 math.MaxUint64。
func estimateDuration(words int, msPerWord float64, rate float32) uint64 {
	if words == 0 {
		return 0
	}
	ms := math.Round(float64(words) * msPerWord / float64(rate))
	switch {
	case ms >= maxDurationMs || math.IsInf(ms, 1):
		return math.MaxUint64
	case ms < 1:
		return 1
	}
	return uint64(ms)
}

// Voices 实现 VoiceLister 接口，返回一个占位语音，名称中的语言标签已规范化。
func (e *EstimateEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	return []string{fmt.Sprintf("Default %s", lang.Normalize(tag))}, nil
}
