package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 SoundMirror 语音后端的顶层配置结构。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Speech   SpeechConfig   `yaml:"speech"`
	Playback PlaybackConfig `yaml:"playback"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig 本地 HTTP 命令接口配置。
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// APIKey 非空时要求请求携带 X-API-Key 或 Authorization: Bearer。
	APIKey string `yaml:"api_key"`
	// CorsOrigins 允许的前端来源，为空则允许所有来源（开发模式）。
	CorsOrigins []string `yaml:"cors_origins"`
	// RateLimit 每个客户端 IP 每分钟允许的请求数，0 表示不限流。
	RateLimit int `yaml:"rate_limit"`
}

// SpeechConfig 语音合成配置。
type SpeechConfig struct {
	// Priority 引擎优先级列表，依次尝试，直到某个引擎合成成功。
	// 可选值: native, estimate, edge, tencent, openai, piper, sherpa
	Priority []string `yaml:"priority"`
	// TimeoutSec 单次合成的最长等待时间（秒），超时返回 success=false。
	TimeoutSec int `yaml:"timeout_sec"`
	// MaxTextLength 单次合成允许的最大字符数，默认 5000，负数表示不限制。
	MaxTextLength int `yaml:"max_text_length"`
	// CacheMaxMB 合成结果内存缓存上限（MB），0 表示不缓存。
	CacheMaxMB int `yaml:"cache_max_mb"`

	Estimate EstimateConfig `yaml:"estimate"`
	Native   NativeConfig   `yaml:"native"`
	Edge     EdgeConfig     `yaml:"edge"`
	Tencent  TencentConfig  `yaml:"tencent"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Piper    PiperConfig    `yaml:"piper"`
	Sherpa   SherpaConfig   `yaml:"sherpa"`
}

// Timeout 返回合成超时时间。
func (c SpeechConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// EstimateConfig 时长估算引擎配置。
type EstimateConfig struct {
	// MsPerWord 每个单词的估算时长（毫秒），语速为 1.0 时生效。
	MsPerWord int `yaml:"ms_per_word"`
}

// NativeConfig 系统自带 TTS 配置（macOS say / Windows SAPI）。
type NativeConfig struct {
	// Voice 系统语音名称，为空使用系统默认语音。
	Voice string `yaml:"voice"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	// Voice 默认语音。
	Voice string `yaml:"voice"`
	// Voices 按语言选择语音，如 en: en-US-AriaNeural。
	Voices map[string]string `yaml:"voices"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	VoiceType int64  `yaml:"voice_type"`
	Region    string `yaml:"region"`
}

// OpenAIConfig OpenAI TTS 配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
	// WordTimestamps 为 true 时调用 Whisper 获取逐词时间戳。
	WordTimestamps bool `yaml:"word_timestamps"`
}

// PiperConfig Piper TTS 配置。
type PiperConfig struct {
	ModelPath string `yaml:"model_path"`
}

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	ModelDir   string `yaml:"model_dir"`
	Model      string `yaml:"model"`
	Lexicon    string `yaml:"lexicon"`
	Tokens     string `yaml:"tokens"`
	DataDir    string `yaml:"data_dir"`
	SpeakerID  int    `yaml:"speaker_id"`
	NumThreads int    `yaml:"num_threads"`
}

// PlaybackConfig 本地播放配置。
type PlaybackConfig struct {
	Enabled bool `yaml:"enabled"`
	// Wait 为 true 时 speak_text 等待播放结束后才返回。
	Wait bool `yaml:"wait"`
}

// DatabaseConfig 合成历史数据库配置。
type DatabaseConfig struct {
	Path    string `yaml:"path"`
	History bool   `yaml:"history"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 先加载当前目录下的 .env（如果存在），再展开 ${VAR_NAME} 形式的环境变量。
// path 为空时只使用默认值。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}

		expanded := os.Expand(string(data), os.Getenv)

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8790"
	}
	if len(cfg.Speech.Priority) == 0 {
		cfg.Speech.Priority = []string{"native"}
	}
	for i, name := range cfg.Speech.Priority {
		cfg.Speech.Priority[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if cfg.Speech.TimeoutSec == 0 {
		cfg.Speech.TimeoutSec = 30
	}
	if cfg.Speech.MaxTextLength == 0 {
		cfg.Speech.MaxTextLength = 5000
	}
	if cfg.Speech.Estimate.MsPerWord == 0 {
		cfg.Speech.Estimate.MsPerWord = 300
	}
	if cfg.Speech.Edge.Voice == "" {
		cfg.Speech.Edge.Voice = "en-US-AriaNeural"
	}
	if cfg.Speech.Tencent.Region == "" {
		cfg.Speech.Tencent.Region = "ap-guangzhou"
	}
	if cfg.Speech.OpenAI.Model == "" {
		cfg.Speech.OpenAI.Model = "tts-1"
	}
	if cfg.Speech.OpenAI.Voice == "" {
		cfg.Speech.OpenAI.Voice = "alloy"
	}
	if cfg.Speech.Sherpa.NumThreads == 0 {
		cfg.Speech.Sherpa.NumThreads = 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Database.Path == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = home + "/.soundmirror/soundmirror.db"
		} else {
			cfg.Database.Path = "./.soundmirror-data/soundmirror.db"
		}
	} else if strings.HasPrefix(cfg.Database.Path, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = home + cfg.Database.Path[1:]
		}
	}

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.Server.APIKey = strings.TrimSpace(cfg.Server.APIKey)
	cfg.Speech.OpenAI.APIKey = strings.TrimSpace(cfg.Speech.OpenAI.APIKey)
	cfg.Speech.Tencent.SecretID = strings.TrimSpace(cfg.Speech.Tencent.SecretID)
	cfg.Speech.Tencent.SecretKey = strings.TrimSpace(cfg.Speech.Tencent.SecretKey)
}

var knownEngines = map[string]bool{
	"native":   true,
	"estimate": true,
	"edge":     true,
	"tencent":  true,
	"openai":   true,
	"piper":    true,
	"sherpa":   true,
}

// validate 检查无法用默认值修正的配置错误。
func validate(cfg *Config) error {
	for _, name := range cfg.Speech.Priority {
		if !knownEngines[name] {
			return fmt.Errorf("未知的语音引擎: %q", name)
		}
	}
	if cfg.Speech.TimeoutSec < 0 {
		return fmt.Errorf("speech.timeout_sec 不能为负数: %d", cfg.Speech.TimeoutSec)
	}
	if cfg.Speech.CacheMaxMB < 0 {
		return fmt.Errorf("speech.cache_max_mb 不能为负数: %d", cfg.Speech.CacheMaxMB)
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit 不能为负数: %d", cfg.Server.RateLimit)
	}
	return nil
}
