package speech

import (
	"fmt"

	"github.com/iabetor/soundmirror/internal/config"
	"github.com/iabetor/soundmirror/internal/logger"
)

// NewEngine 按 speech.priority 创建引擎链。
// 初始化失败的引擎（缺少密钥、模型不存在）会被跳过并记录警告；
// 一个都没有时返回只包含 UnsupportedEngine 的链，合成结果为 success=false。
func NewEngine(cfg config.SpeechConfig) *FallbackEngine {
	var engines []Engine
	var names []string
	for _, name := range cfg.Priority {
		engine, err := newNamedEngine(name, cfg)
		if err != nil {
			logger.Warnf("[speech] 引擎 %s 初始化失败，已跳过: %v", name, err)
			continue
		}
		engines = append(engines, engine)
		names = append(names, name)
	}
	if len(engines) == 0 {
		logger.Warnf("[speech] 没有可用的语音合成引擎")
		engines = append(engines, UnsupportedEngine{})
		names = append(names, "unsupported")
	}
	return NewFallbackEngine(FallbackConfig{Engines: engines, Names: names})
}

func newNamedEngine(name string, cfg config.SpeechConfig) (Engine, error) {
	switch name {
	case "native":
		logger.Infof("[speech] 系统 TTS: %s", NativePlatform)
		return NewNativeEngine(cfg.Native.Voice), nil
	case "estimate":
		return NewEstimateEngine(cfg.Estimate.MsPerWord), nil
	case "edge":
		return NewEdgeEngine(cfg.Edge.Voice, cfg.Edge.Voices), nil
	case "tencent":
		return NewTencentEngine(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			VoiceType: cfg.Tencent.VoiceType,
			Region:    cfg.Tencent.Region,
		})
	case "openai":
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			Voice:          cfg.OpenAI.Voice,
			WordTimestamps: cfg.OpenAI.WordTimestamps,
		})
	case "piper":
		if cfg.Piper.ModelPath == "" {
			return nil, errMissing("speech.piper.model_path")
		}
		return NewPiperEngine(cfg.Piper.ModelPath), nil
	case "sherpa":
		return NewSherpaEngine(SherpaConfig{
			ModelDir:   cfg.Sherpa.ModelDir,
			Model:      cfg.Sherpa.Model,
			Lexicon:    cfg.Sherpa.Lexicon,
			Tokens:     cfg.Sherpa.Tokens,
			DataDir:    cfg.Sherpa.DataDir,
			SpeakerID:  cfg.Sherpa.SpeakerID,
			NumThreads: cfg.Sherpa.NumThreads,
		})
	default:
		return nil, errUnknownEngine(name)
	}
}

func errMissing(key string) error {
	return fmt.Errorf("[speech] 缺少配置 %s", key)
}

func errUnknownEngine(name string) error {
	return fmt.Errorf("[speech] 未知的引擎: %s", name)
}
