package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/lang"
	"github.com/iabetor/soundmirror/internal/logger"
)

// tencentClient 是 TencentEngine 用到的 SDK 方法子集。
type tencentClient interface {
	TextToVoiceWithContext(ctx context.Context, request *tts.TextToVoiceRequest) (*tts.TextToVoiceResponse, error)
}

// TencentEngine 使用腾讯云 TTS 实现语音合成。
// 适用于中国大陆网络环境，开启 EnableSubtitle 后返回逐字时间戳。
type TencentEngine struct {
	client    tencentClient
	voiceType int64
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	VoiceType int64
	Region    string
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[speech] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if cfg.VoiceType == 0 {
		cfg.VoiceType = 1001 // 默认音色：智瑜（女声）
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[speech] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[speech] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", cfg.VoiceType, cfg.Region)

	return &TencentEngine{client: client, voiceType: cfg.VoiceType}, nil
}

// Synthesize 实现 Engine 接口。
// 腾讯云 TTS 返回 Base64 编码的 MP3，需要解码为 PCM。
func (e *TencentEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	logger.Debugf("[speech] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(req.Text)), e.voiceType)

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(req.Text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(e.voiceType)
	request.PrimaryLanguage = common.Int64Ptr(tencentLanguage(req.Lang))
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(tencentSpeed(req.Rate))
	request.Volume = common.Float64Ptr(5.0)
	request.EnableSubtitle = common.BoolPtr(true)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("[speech] 腾讯云 TTS 合成失败: %w", err)
	}
	if response == nil || response.Response == nil || response.Response.Audio == nil {
		return nil, fmt.Errorf("[speech] 腾讯云 TTS: 未返回音频数据")
	}

	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("[speech] Base64 解码失败: %w", err)
	}
	logger.Debugf("[speech] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))

	samples, sampleRate, err := audio.DecodeMP3(ctx, mp3Data)
	if err != nil {
		return nil, fmt.Errorf("[speech] 腾讯云 TTS: %w", err)
	}

	var boundaries []WordBoundary
	for _, sub := range response.Response.Subtitles {
		if sub == nil || sub.Text == nil || sub.BeginTime == nil || sub.EndTime == nil {
			continue
		}
		if *sub.BeginTime < 0 || *sub.EndTime < *sub.BeginTime {
			continue
		}
		boundaries = append(boundaries, WordBoundary{
			Word:    *sub.Text,
			StartMs: uint64(*sub.BeginTime),
			EndMs:   uint64(*sub.EndTime),
		})
	}
	return fromSamples(samples, sampleRate, boundaries), nil
}

// Voices 实现 VoiceLister 接口。腾讯云只支持中文和英文，返回配置的音色编号。
func (e *TencentEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	switch lang.Base(tag) {
	case "", "zh", "en":
		return []string{strconv.FormatInt(e.voiceType, 10)}, nil
	default:
		return []string{}, nil
	}
}

// tencentLanguage 返回 PrimaryLanguage：1 中文，2 英文。
func tencentLanguage(tag string) int64 {
	if lang.Base(tag) == "en" {
		return 2
	}
	return 1
}

// tencentSpeed 把语速倍率映射到腾讯云 Speed 参数（-2..6）。
// 官方对照：-2=0.6 倍，-1=0.8 倍，0=1.0 倍，1=1.2 倍，2=1.5 倍，6=2.5 倍，中间线性插值。
func tencentSpeed(rate float32) float64 {
	points := [][2]float64{{0.6, -2}, {0.8, -1}, {1.0, 0}, {1.2, 1}, {1.5, 2}, {2.5, 6}}
	r := float64(rate)
	if r <= points[0][0] {
		return points[0][1]
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if r <= hi[0] {
			return lo[1] + (r-lo[0])/(hi[0]-lo[0])*(hi[1]-lo[1])
		}
	}
	return points[len(points)-1][1]
}
