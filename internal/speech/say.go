package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/lang"
	"github.com/iabetor/soundmirror/internal/logger"
)

// sayBaseWPM 是 say 命令的默认语速（每分钟单词数），对应 rate=1.0。
const sayBaseWPM = 175

// SayEngine 使用 macOS 内置 say 命令实现语音合成。
// say 先输出 AIFF 文件，再用 afconvert 转为 16-bit LE 单声道 WAV。
// say 不提供单词回调，单词边界由命令层按时长估算。
type SayEngine struct {
	voice string // macOS 语音名称，如 "Samantha"；为空时按请求语言挑选
	run   runFunc
}

// NewSayEngine 创建 macOS say TTS 引擎。
func NewSayEngine(voice string) *SayEngine {
	return &SayEngine{voice: voice, run: execRun}
}

// Synthesize 实现 Engine 接口。
func (s *SayEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	logger.Debugf("[speech] say: 正在合成 %d 个字符，lang=%s rate=%.2f", len([]rune(req.Text)), req.Lang, req.Rate)

	tmpFile, err := os.CreateTemp("", "soundmirror-say-*.aiff")
	if err != nil {
		return nil, fmt.Errorf("[speech] say: 创建临时文件失败: %w", err)
	}
	aiffPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(aiffPath)

	wavPath := aiffPath + ".wav"
	defer os.Remove(wavPath)

	// 文本通过 stdin 传入（-f -），避免以 "-" 开头的文本被当作参数
	args := []string{"-o", aiffPath, "-r", strconv.Itoa(sayWPM(req.Rate)), "-f", "-"}
	if voice := s.pickVoice(ctx, req.Lang); voice != "" {
		args = append(args, "-v", voice)
	}

	if _, err := s.run(ctx, "say", args, []byte(req.Text)); err != nil {
		return nil, unsupportedIfMissing(fmt.Errorf("[speech] say: %w", err))
	}

	_, err = s.run(ctx, "afconvert", []string{
		"-f", "WAVE",
		"-d", "LEI16@22050",
		"-c", "1",
		aiffPath, wavPath,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("[speech] afconvert: %w", err)
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("[speech] say: 读取输出文件失败: %w", err)
	}
	wav, err := audio.ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("[speech] say: %w", err)
	}

	samples := wav.Mono()
	if len(samples) == 0 {
		return nil, fmt.Errorf("[speech] say: 未收到音频数据")
	}
	logger.Debugf("[speech] say: 生成 %d 个样本，采样率 %d Hz", len(samples), wav.SampleRate)

	return fromSamples(samples, wav.SampleRate, nil), nil
}

// Voices 实现 VoiceLister 接口，解析 `say -v ?` 的输出并按语言过滤。
func (s *SayEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	voices, err := s.listVoices(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(voices))
	for _, v := range voices {
		if matchesLocale(v.Locale, tag) {
			names = append(names, v.Name)
		}
	}
	return names, nil
}

// pickVoice 返回配置的语音；未配置时选第一个匹配请求语言的系统语音。
func (s *SayEngine) pickVoice(ctx context.Context, tag string) string {
	if s.voice != "" || strings.TrimSpace(tag) == "" {
		return s.voice
	}
	names, err := s.Voices(ctx, tag)
	if err != nil {
		logger.Warnf("[speech] say: 获取语音列表失败，使用系统默认语音: %v", err)
		return ""
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

type localVoice struct {
	Name   string
	Locale string
}

func (s *SayEngine) listVoices(ctx context.Context) ([]localVoice, error) {
	out, err := s.run(ctx, "say", []string{"-v", "?"}, nil)
	if err != nil {
		return nil, unsupportedIfMissing(fmt.Errorf("[speech] say -v ?: %w", err))
	}
	return parseSayVoices(out), nil
}

// sayVoiceLine 匹配 `say -v ?` 的一行，如：
// "Eddy (English (US))  en_US    # Hello! My name is Eddy."
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s{2,}([A-Za-z]{2,3}[_-][A-Za-z0-9_-]+)\s+#`)

func parseSayVoices(out []byte) []localVoice {
	var voices []localVoice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		voices = append(voices, localVoice{Name: strings.TrimSpace(m[1]), Locale: m[2]})
	}
	return voices
}

// sayWPM 将语速倍率换算为 say 的每分钟单词数。
func sayWPM(rate float32) int {
	wpm := int(math.Round(float64(rate) * sayBaseWPM))
	if wpm < 1 {
		wpm = 1
	}
	return wpm
}

// matchesLocale 在 lang 为空时不过滤。
func matchesLocale(locale, requested string) bool {
	if strings.TrimSpace(requested) == "" {
		return true
	}
	return lang.Matches(locale, requested)
}
