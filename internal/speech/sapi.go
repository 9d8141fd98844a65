package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/logger"
)

// SAPIEngine 通过 PowerShell 调用 .NET System.Speech（SAPI）合成语音。
// 文本经 stdin 传入，音频写入临时 WAV 文件，
// SpeakProgress 事件以 "W\t毫秒\t字符位置\t单词" 的行格式输出到 stdout。
type SAPIEngine struct {
	voice string
	run   runFunc
}

// NewSAPIEngine 创建 Windows SAPI TTS 引擎。
func NewSAPIEngine(voice string) *SAPIEngine {
	return &SAPIEngine{voice: voice, run: execRun}
}

const sapiPrelude = `$ErrorActionPreference = 'Stop'
[Console]::InputEncoding = [System.Text.Encoding]::UTF8
[Console]::OutputEncoding = [System.Text.Encoding]::UTF8
Add-Type -AssemblyName System.Speech
$tab = [string][char]9
$s = New-Object System.Speech.Synthesis.SpeechSynthesizer
`

const sapiSpeak = `$text = [Console]::In.ReadToEnd()
if ($voice -ne '') { $s.SelectVoice($voice) }
$s.Rate = $rate
$fmt = New-Object System.Speech.AudioFormat.SpeechAudioFormatInfo(22050, [System.Speech.AudioFormat.AudioBitsPerSample]::Sixteen, [System.Speech.AudioFormat.AudioChannel]::Mono)
$s.SetOutputToWaveFile($out, $fmt)
Register-ObjectEvent -InputObject $s -EventName SpeakProgress -SourceIdentifier sm.progress | Out-Null
$s.Speak($text)
$s.SetOutputToNull()
Get-Event -SourceIdentifier sm.progress | ForEach-Object {
  $a = $_.SourceEventArgs
  [Console]::Out.WriteLine([string]::Join($tab, @('W', [int64]$a.AudioPosition.TotalMilliseconds, $a.CharacterPosition, $a.Text)))
}
$s.Dispose()
`

const sapiVoices = `$s.GetInstalledVoices() | Where-Object { $_.Enabled } | ForEach-Object {
  $i = $_.VoiceInfo
  [Console]::Out.WriteLine($i.Name + $tab + $i.Culture.Name)
}
$s.Dispose()
`

// Synthesize 实现 Engine 接口。
func (e *SAPIEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	logger.Debugf("[speech] sapi: 正在合成 %d 个字符，lang=%s rate=%.2f", len([]rune(req.Text)), req.Lang, req.Rate)

	tmpFile, err := os.CreateTemp("", "soundmirror-sapi-*.wav")
	if err != nil {
		return nil, fmt.Errorf("[speech] sapi: 创建临时文件失败: %w", err)
	}
	wavPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(wavPath)

	script := sapiPrelude +
		fmt.Sprintf("$voice = %s\n$rate = %d\n$out = %s\n", psQuote(e.pickVoice(ctx, req.Lang)), sapiRate(req.Rate), psQuote(wavPath)) +
		sapiSpeak

	out, err := e.powershell(ctx, script, []byte(req.Text))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("[speech] sapi: 读取输出文件失败: %w", err)
	}
	wav, err := audio.ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("[speech] sapi: %w", err)
	}
	samples := wav.Mono()
	if len(samples) == 0 {
		return nil, fmt.Errorf("[speech] sapi: 未收到音频数据")
	}

	syn := fromSamples(samples, wav.SampleRate, nil)
	syn.Boundaries = chainBoundaries(parseSAPIProgress(out), syn.DurationMs)
	logger.Debugf("[speech] sapi: 生成 %d 个样本，%d 个单词边界", len(samples), len(syn.Boundaries))
	return syn, nil
}

// Voices 实现 VoiceLister 接口，列出已启用的系统语音并按语言过滤。
func (e *SAPIEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	out, err := e.powershell(ctx, sapiPrelude+sapiVoices, nil)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, v := range parseSAPIVoices(out) {
		if matchesLocale(v.Locale, tag) {
			names = append(names, v.Name)
		}
	}
	return names, nil
}

func (e *SAPIEngine) pickVoice(ctx context.Context, tag string) string {
	if e.voice != "" || strings.TrimSpace(tag) == "" {
		return e.voice
	}
	names, err := e.Voices(ctx, tag)
	if err != nil || len(names) == 0 {
		return ""
	}
	return names[0]
}

// powershell 以 -EncodedCommand 执行脚本，避免命令行转义问题。
func (e *SAPIEngine) powershell(ctx context.Context, script string, stdin []byte) ([]byte, error) {
	encoded, err := encodePowerShell(script)
	if err != nil {
		return nil, fmt.Errorf("[speech] sapi: 编码脚本失败: %w", err)
	}
	out, err := e.run(ctx, "powershell.exe", []string{
		"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass",
		"-EncodedCommand", encoded,
	}, stdin)
	if err != nil {
		return nil, unsupportedIfMissing(fmt.Errorf("[speech] sapi: %w", err))
	}
	return out, nil
}

// encodePowerShell 按 -EncodedCommand 的要求做 UTF-16LE + Base64 编码。
func encodePowerShell(script string) (string, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	b, err := enc.Bytes([]byte(script))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// psQuote 生成 PowerShell 单引号字符串字面量。
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// sapiRate 把语速倍率映射到 SAPI 的 -10..10。
// SAPI 每 +10 约为 3 倍速，所以 rate = 10·log3(r)。
func sapiRate(rate float32) int {
	v := math.Round(10 * math.Log(float64(rate)) / math.Log(3))
	if v > 10 {
		v = 10
	}
	if v < -10 {
		v = -10
	}
	return int(v)
}

// parseSAPIProgress 解析 SpeakProgress 输出行，只填开始时间。
func parseSAPIProgress(out []byte) []WordBoundary {
	var bs []WordBoundary
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimRight(scanner.Text(), "\r"), "\t", 4)
		if len(fields) != 4 || fields[0] != "W" {
			continue
		}
		ms, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		word := strings.TrimSpace(fields[3])
		if word == "" {
			continue
		}
		bs = append(bs, WordBoundary{Word: word, StartMs: ms})
	}
	return bs
}

func parseSAPIVoices(out []byte) []localVoice {
	var voices []localVoice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		name, locale, ok := strings.Cut(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		voices = append(voices, localVoice{Name: strings.TrimSpace(name), Locale: strings.TrimSpace(locale)})
	}
	return voices
}
