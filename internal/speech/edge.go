package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/lang"
	"github.com/iabetor/soundmirror/internal/logger"
)

// edgeTicksPerMs 是 Edge WordBoundary 偏移量的单位换算（100ns 一个 tick）。
const edgeTicksPerMs = 10000

// edgeMaxRate 是 Edge 语速百分比的上限。
const edgeMaxRate = 200

// edgeDrainTimeout 是提前退出后后台继续读取剩余消息的最长时间。
// edge-tts-go 的写协程在无缓冲 channel 上发送，不读完会一直阻塞。
var edgeDrainTimeout = 2 * time.Minute

// edgeSession 是一次 Edge 合成流。
// 输出 channel 不会自动关闭，每段文本结束时发送一条 {"end": ""}，共 chunks 段。
type edgeSession struct {
	messages <-chan map[string]interface{}
	chunks   int
	close    func()
}

// edgeStreamFunc 打开一次 Edge 合成流，测试中可替换。
type edgeStreamFunc func(text, voice, rate string) (*edgeSession, error)

// EdgeEngine 使用微软 Edge TTS 实现语音合成，
// 通过 edge-tts-go 获取 MP3 音频和 WordBoundary 事件，再用 go-mp3 解码为 PCM。
type EdgeEngine struct {
	voice  string
	voices map[string]string // 语言 -> 语音
	stream edgeStreamFunc
	decode func(ctx context.Context, data []byte) ([]float32, int, error)
}

// NewEdgeEngine 创建 Edge TTS 引擎。
// voices 按语言选择语音，键可以是 en、en-US 或 english，未命中时使用 voice。
func NewEdgeEngine(voice string, voices map[string]string) *EdgeEngine {
	normalized := make(map[string]string, len(voices))
	for k, v := range voices {
		normalized[strings.ToLower(lang.Normalize(k))] = v
	}
	return &EdgeEngine{voice: voice, voices: normalized, stream: openEdgeStream, decode: audio.DecodeMP3}
}

func openEdgeStream(text, voice, rate string) (*edgeSession, error) {
	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice), edge.WithRate(rate))
	if err != nil {
		return nil, fmt.Errorf("创建实例失败: %w", err)
	}
	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("开始流式合成失败: %w", err)
	}
	return &edgeSession{
		messages: ch,
		chunks:   comm.AudioDataIndex,
		close:    func() { comm.CloseOutput() },
	}, nil
}

// Synthesize 实现 Engine 接口。
func (e *EdgeEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	if CountWords(req.Text) == 0 {
		return silence(), nil
	}
	voice := e.voiceFor(req.Lang)
	logger.Debugf("[speech] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(req.Text)), voice)

	session, err := e.stream(req.Text, voice, edgeRate(req.Rate))
	if err != nil {
		return nil, fmt.Errorf("[speech] edge-tts %w", err)
	}
	chunks := session.chunks
	if chunks < 1 {
		chunks = 1
	}

	var mp3Buf bytes.Buffer
	var boundaries []WordBoundary
	ended := 0
	closed := false
	for ended < chunks {
		select {
		case <-ctx.Done():
			go drainEdge(session, chunks-ended)
			return nil, ctx.Err()
		case msg, ok := <-session.messages:
			if !ok {
				// 输出已被关闭，不会再有消息
				closed = true
				ended = chunks
				break
			}
			if errMsg, isErr := msg["error"]; isErr && errMsg != nil {
				go drainEdge(session, chunks-ended)
				return nil, fmt.Errorf("[speech] edge-tts: %v", errMsg)
			}
			if _, isEnd := msg["end"]; isEnd {
				ended++
				continue
			}
			switch msg["type"] {
			case "audio":
				if data := edgeAudioBytes(msg["data"]); len(data) > 0 {
					mp3Buf.Write(data)
				}
			case "WordBoundary":
				if b, ok := parseEdgeBoundary(msg); ok {
					boundaries = append(boundaries, b)
				}
			}
		}
	}
	if !closed {
		session.close()
	}

	if mp3Buf.Len() == 0 {
		return nil, fmt.Errorf("[speech] edge-tts: 未收到音频数据")
	}
	logger.Debugf("[speech] edge-tts: 收到 %d 字节 MP3 数据，%d 个单词边界", mp3Buf.Len(), len(boundaries))

	samples, sampleRate, err := e.decode(ctx, mp3Buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("[speech] edge-tts: %w", err)
	}
	sort.SliceStable(boundaries, func(i, j int) bool {
		return boundaries[i].StartMs < boundaries[j].StartMs
	})
	return fromSamples(samples, sampleRate, boundaries), nil
}

// drainEdge 读完剩余 remaining 段的消息后关闭输出，让库的写协程退出。
func drainEdge(session *edgeSession, remaining int) {
	timer := time.NewTimer(edgeDrainTimeout)
	defer timer.Stop()
	defer session.close()
	for remaining > 0 {
		select {
		case <-timer.C:
			logger.Warnf("[speech] edge-tts: 等待剩余消息超时，强制关闭")
			return
		case msg, ok := <-session.messages:
			if !ok {
				return
			}
			if _, isEnd := msg["end"]; isEnd {
				remaining--
			}
		}
	}
}

// edgeAudioBytes 取出音频消息中的 MP3 数据，库发送的是 edge.AudioData。
func edgeAudioBytes(v interface{}) []byte {
	switch d := v.(type) {
	case edge.AudioData:
		return d.Data
	case *edge.AudioData:
		if d != nil {
			return d.Data
		}
	case []byte:
		return d
	}
	return nil
}

// Voices 实现 VoiceLister 接口，返回配置中与语言匹配的语音（去重）。
func (e *EdgeEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	names := []string{}
	seen := make(map[string]bool)
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		names = append(names, v)
	}
	for _, v := range sortedValues(e.voices) {
		if matchesLocale(edgeVoiceLocale(v), tag) {
			add(v)
		}
	}
	if matchesLocale(edgeVoiceLocale(e.voice), tag) {
		add(e.voice)
	}
	return names, nil
}

// voiceFor 按 完整标签 -> 基础语言 -> 默认语音 的顺序选择语音。
func (e *EdgeEngine) voiceFor(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return e.voice
	}
	if v, ok := e.voices[strings.ToLower(lang.Normalize(tag))]; ok {
		return v
	}
	if v, ok := e.voices[lang.Base(tag)]; ok {
		return v
	}
	return e.voice
}

// edgeVoiceLocale 从 en-US-AriaNeural 这样的语音名中取出 en-US。
func edgeVoiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return voice
	}
	return parts[0] + "-" + parts[1]
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// edgeRate 把语速倍率转换为 Edge 的百分比字符串，如 1.5 -> "+50%"。
func edgeRate(rate float32) string {
	pct := math.Round((float64(rate) - 1) * 100)
	pct = math.Max(-90, math.Min(edgeMaxRate, pct))
	return fmt.Sprintf("%+d%%", int(pct))
}

func parseEdgeBoundary(msg map[string]interface{}) (WordBoundary, bool) {
	text := edgeBoundaryText(msg["text"])
	offset, ok1 := toInt64(msg["offset"])
	duration, ok2 := toInt64(msg["duration"])
	if text == "" || !ok1 || !ok2 || offset < 0 || duration < 0 {
		return WordBoundary{}, false
	}
	start := uint64(offset / edgeTicksPerMs)
	return WordBoundary{
		Word:    text,
		StartMs: start,
		EndMs:   start + uint64(duration/edgeTicksPerMs),
	}, true
}

// edgeBoundaryText 取出单词文本。库把元数据里的 text 对象（Text、Length、BoundaryType）
// 原样放进消息，这里通过 JSON 取它的 Text 字段。
func edgeBoundaryText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var word struct {
		Text string
	}
	if err := json.Unmarshal(data, &word); err != nil {
		return ""
	}
	return word.Text
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
