package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/soundmirror/internal/logger"
)

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
// Model、Lexicon、Tokens、DataDir 为空时按 ModelDir 下的常见文件名推断。
type SherpaConfig struct {
	ModelDir   string
	Model      string
	Lexicon    string
	Tokens     string
	DataDir    string
	SpeakerID  int
	NumThreads int
}

// SherpaEngine 封装 sherpa-onnx 离线 TTS，完全在本地推理。
// OfflineTts 不是并发安全的，Generate 调用由互斥锁串行化。
type SherpaEngine struct {
	mu   sync.Mutex
	tts  *sherpa.OfflineTts
	sid  int
	name string
}

// NewSherpaEngine 加载 VITS 模型并创建离线 TTS。
func NewSherpaEngine(cfg SherpaConfig) (*SherpaEngine, error) {
	if cfg.ModelDir == "" && cfg.Model == "" {
		return nil, fmt.Errorf("[speech] sherpa TTS 需要 model_dir 或 model")
	}
	if cfg.Model == "" {
		cfg.Model = filepath.Join(cfg.ModelDir, "model.onnx")
	}
	if cfg.Tokens == "" {
		cfg.Tokens = filepath.Join(cfg.ModelDir, "tokens.txt")
	}
	if cfg.Lexicon == "" {
		if p := filepath.Join(cfg.ModelDir, "lexicon.txt"); fileExists(p) {
			cfg.Lexicon = p
		}
	}
	if cfg.DataDir == "" {
		if p := filepath.Join(cfg.ModelDir, "espeak-ng-data"); fileExists(p) {
			cfg.DataDir = p
		}
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	if !fileExists(cfg.Model) {
		return nil, fmt.Errorf("[speech] sherpa 模型文件不存在: %s", cfg.Model)
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = cfg.Model
	config.Model.Vits.Lexicon = cfg.Lexicon
	config.Model.Vits.Tokens = cfg.Tokens
	config.Model.Vits.DataDir = cfg.DataDir
	config.Model.Vits.NoiseScale = 0.667
	config.Model.Vits.NoiseScaleW = 0.8
	config.Model.Vits.LengthScale = 1.0
	config.Model.NumThreads = cfg.NumThreads
	config.Model.Provider = "cpu"
	config.MaxNumSentences = 1

	tts := sherpa.NewOfflineTts(&config)
	if tts == nil {
		return nil, fmt.Errorf("[speech] 创建 sherpa 离线 TTS 失败，模型: %s", cfg.Model)
	}

	name := strings.TrimSuffix(filepath.Base(cfg.Model), ".onnx")
	if cfg.ModelDir != "" {
		name = filepath.Base(cfg.ModelDir)
	}
	logger.Infof("[speech] sherpa TTS 引擎已初始化 (model=%s, threads=%d)", name, cfg.NumThreads)

	return &SherpaEngine{tts: tts, sid: cfg.SpeakerID, name: name}, nil
}

// Synthesize 实现 Engine 接口，speed 使用限制在 0.1..10 的语速倍率。
func (e *SherpaEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tts == nil {
		return nil, fmt.Errorf("[speech] sherpa TTS 已关闭")
	}

	logger.Debugf("[speech] sherpa: 正在合成 %d 个字符", len([]rune(req.Text)))
	generated := e.tts.Generate(req.Text, e.sid, float32(clampRate(req.Rate, minModelRate, maxModelRate)))
	if generated == nil || len(generated.Samples) == 0 {
		return nil, fmt.Errorf("[speech] sherpa: 未生成音频")
	}
	return fromSamples(generated.Samples, generated.SampleRate, nil), nil
}

// Voices 实现 VoiceLister 接口。模型不带语言元数据，总是返回模型名。
func (e *SherpaEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	return []string{e.name}, nil
}

// Close 释放模型。
func (e *SherpaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tts != nil {
		sherpa.DeleteOfflineTts(e.tts)
		e.tts = nil
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
