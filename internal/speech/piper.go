package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/logger"
)

// piperSampleRate 是 piper 模型没有 .onnx.json 时假定的采样率。
const piperSampleRate = 22050

// 本地模型可用的语速范围，超出时按边界合成。
const (
	minModelRate = 0.1
	maxModelRate = 10
)

// PiperEngine 使用 piper CLI 子进程实现离线语音合成。
type PiperEngine struct {
	modelPath  string
	sampleRate int
	run        runFunc
}

// NewPiperEngine 创建指定模型的 Piper TTS 引擎。
// 采样率从模型旁的 <model>.onnx.json 读取，读取失败时使用 22050 Hz。
func NewPiperEngine(modelPath string) *PiperEngine {
	return &PiperEngine{
		modelPath:  modelPath,
		sampleRate: piperModelSampleRate(modelPath),
		run:        execRun,
	}
}

// Synthesize 使用 piper CLI 将文本转换为单声道 float32 音频样本。
// piper 输出 signed 16-bit LE 单声道 PCM；语速通过 --length_scale 控制。
func (p *PiperEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	logger.Debugf("[speech] piper: 正在合成 %d 个字符，模型=%s", len([]rune(req.Text)), p.modelPath)

	args := []string{
		"--model", p.modelPath,
		"--output-raw",
		"--length_scale", piperLengthScale(req.Rate),
	}
	pcmData, err := p.run(ctx, "piper", args, []byte(req.Text))
	if err != nil {
		return nil, unsupportedIfMissing(fmt.Errorf("[speech] piper: %w", err))
	}
	if len(pcmData) == 0 {
		return nil, fmt.Errorf("[speech] piper: 未收到音频数据")
	}

	samples := audio.BytesToFloat32(pcmData)
	logger.Debugf("[speech] piper: 生成 %d 个单声道 float32 样本", len(samples))

	return fromSamples(samples, p.sampleRate, nil), nil
}

// Voices 实现 VoiceLister 接口。piper 一次只加载一个模型，
// 模型文件名的前缀（如 en_US-lessac-medium）即其语言。
func (p *PiperEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	name := strings.TrimSuffix(filepath.Base(p.modelPath), ".onnx")
	locale, _, _ := strings.Cut(name, "-")
	if !matchesLocale(locale, tag) {
		return []string{}, nil
	}
	return []string{name}, nil
}

func piperModelSampleRate(modelPath string) int {
	data, err := os.ReadFile(modelPath + ".json")
	if err != nil {
		return piperSampleRate
	}
	var meta struct {
		Audio struct {
			SampleRate int `json:"sample_rate"`
		} `json:"audio"`
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.Audio.SampleRate <= 0 {
		return piperSampleRate
	}
	return meta.Audio.SampleRate
}

// piperLengthScale 返回 --length_scale 参数：语速的倒数，语速先限制在 0.1..10。
func piperLengthScale(rate float32) string {
	return strconv.FormatFloat(1/clampRate(rate, minModelRate, maxModelRate), 'g', 4, 64)
}

func clampRate(rate float32, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, float64(rate)))
}
