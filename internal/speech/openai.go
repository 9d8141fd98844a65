package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/logger"
)

// openAIVoices 是 OpenAI TTS 的内置语音，它们都是多语言的。
var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// OpenAIConfig OpenAI TTS 配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	// WordTimestamps 为 true 时把合成结果再送去 Whisper 转写，取逐词时间戳。
	WordTimestamps bool
}

// OpenAIEngine 使用 OpenAI（或兼容接口）的 /audio/speech 合成 WAV。
type OpenAIEngine struct {
	client         *openai.Client
	model          string
	voice          string
	wordTimestamps bool
}

// NewOpenAIEngine 创建 OpenAI TTS 引擎。
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[speech] OpenAI TTS 需要 api_key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	logger.Infof("[speech] OpenAI TTS 引擎已初始化 (model=%s, voice=%s)", cfg.Model, cfg.Voice)

	return &OpenAIEngine{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		voice:          cfg.Voice,
		wordTimestamps: cfg.WordTimestamps,
	}, nil
}

// Synthesize 实现 Engine 接口。
func (e *OpenAIEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	logger.Debugf("[speech] openai: 正在合成 %d 个字符，语音=%s", len([]rune(req.Text)), e.voice)

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(e.voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          openAISpeed(req.Rate),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("[speech] openai 合成失败: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("[speech] openai 读取音频失败: %w", err)
	}
	wav, err := audio.ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("[speech] openai: %w", err)
	}
	samples := wav.Mono()
	if len(samples) == 0 {
		return nil, fmt.Errorf("[speech] openai: 未收到音频数据")
	}

	var boundaries []WordBoundary
	if e.wordTimestamps {
		boundaries, err = e.transcribeWords(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf("[speech] openai: 获取逐词时间戳失败，改用估算: %v", err)
		}
	}
	return fromSamples(samples, wav.SampleRate, boundaries), nil
}

// transcribeWords 用 Whisper 转写合成的音频，返回逐词时间戳。
func (e *OpenAIEngine) transcribeWords(ctx context.Context, wav []byte) ([]WordBoundary, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(wav),
		FilePath: "speech.wav",
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, err
	}
	bs := make([]WordBoundary, 0, len(resp.Words))
	for _, w := range resp.Words {
		if w.Start < 0 || w.End < w.Start {
			continue
		}
		bs = append(bs, WordBoundary{
			Word:    w.Word,
			StartMs: uint64(math.Round(w.Start * 1000)),
			EndMs:   uint64(math.Round(w.End * 1000)),
		})
	}
	return bs, nil
}

// Voices 实现 VoiceLister 接口。OpenAI 语音不区分语言。
func (e *OpenAIEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	out := make([]string, len(openAIVoices))
	copy(out, openAIVoices)
	return out, nil
}

// openAISpeed 把语速限制在接口允许的 0.25..4.0。
func openAISpeed(rate float32) float64 {
	return math.Min(4, math.Max(0.25, float64(rate)))
}
