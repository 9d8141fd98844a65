// Package command 是前端可调用的命令层：speak_text、get_voices、get_precise_time。
// HTTP 接口和 smctl 命令行都只是它的外壳。
package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/soundmirror/internal/history"
	"github.com/iabetor/soundmirror/internal/logger"
	"github.com/iabetor/soundmirror/internal/speech"
)

// DefaultTimeout 是单次合成的默认等待上限。
const DefaultTimeout = 30 * time.Second

// Player 播放合成的音频，audio.Player 实现它。
type Player interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
}

// HistoryRecorder 记录每次 speak_text 调用，history.Store 实现它。
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options 命令层配置。
type Options struct {
	Engine speech.Engine
	// Timeout 单次合成的等待上限，<= 0 时使用 DefaultTimeout。
	Timeout time.Duration
	// MaxTextLength 最大字符数，<= 0 表示不限制。
	MaxTextLength int
	// Player 为空时不播放。
	Player Player
	// WaitPlayback 为 true 时 SpeakText 等播放结束才返回，否则后台播放。
	WaitPlayback bool
	// History 为空时不记录。
	History HistoryRecorder
	// Clock 为空时使用 NewClock()。
	Clock *Clock
}

// Surface 实现三个前端命令。除了时钟的高水位和后台播放，调用之间不共享状态。
type Surface struct {
	engine        speech.Engine
	timeout       time.Duration
	maxTextLength int
	player        Player
	waitPlayback  bool
	history       HistoryRecorder
	clock         *Clock

	// 后台播放绑定到 Surface 的生命周期
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New 创建命令层。opts.Engine 为空时使用 UnsupportedEngine。
func New(opts Options) *Surface {
	if opts.Engine == nil {
		opts.Engine = speech.UnsupportedEngine{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Surface{
		engine:        opts.Engine,
		timeout:       opts.Timeout,
		maxTextLength: opts.MaxTextLength,
		player:        opts.Player,
		waitPlayback:  opts.WaitPlayback,
		history:       opts.History,
		clock:         opts.Clock,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SpeakText 合成并（可选）播放一段文本。
//
// 平台不支持、合成超时或引擎失败都返回 success=false 而不是错误；
// 只有参数错误（rate 非正或非有限数、文本过长）和调用方取消 ctx 才返回 error。
func (s *Surface) SpeakText(ctx context.Context, req speech.Request) (speech.Response, error) {
	if err := speech.Validate(req, s.maxTextLength); err != nil {
		return speech.Unavailable(), err
	}

	start := time.Now()
	synCtx, cancel := context.WithTimeout(ctx, s.timeout)
	syn, err := s.engine.Synthesize(synCtx, req)
	timedOut := errors.Is(synCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return speech.Unavailable(), ctxErr
		}
		if errors.Is(err, speech.ErrInvalidRate) || errors.Is(err, speech.ErrTextTooLong) {
			return speech.Unavailable(), err
		}
		switch {
		case errors.Is(err, speech.ErrUnsupported):
			logger.Infof("[command] speak_text: 当前平台不支持语音合成")
		case timedOut:
			logger.Warnf("[command] speak_text: 合成超时（%v）", s.timeout)
			err = context.DeadlineExceeded
		default:
			logger.Errorf("[command] speak_text: 合成失败: %v", err)
		}
		s.record(req, "", speech.Unavailable(), err)
		return speech.Unavailable(), nil
	}

	resp := speech.Response{
		Success:        true,
		DurationMs:     syn.DurationMs,
		WordBoundaries: boundariesFor(req.Text, syn),
	}
	logger.Debugf("[command] speak_text: engine=%s duration=%dms words=%d，耗时 %v",
		syn.Engine, resp.DurationMs, len(resp.WordBoundaries), time.Since(start).Round(time.Millisecond))

	if err := s.play(ctx, syn); err != nil {
		return speech.Unavailable(), err
	}

	s.record(req, syn.Engine, resp, nil)
	return resp, nil
}

// boundariesFor 优先使用引擎回调的边界；引擎产出了音频却没有边界时按字符数估算。
func boundariesFor(text string, syn *speech.Synthesis) []speech.WordBoundary {
	bs := syn.Boundaries
	if len(bs) == 0 && len(syn.Samples) > 0 {
		bs = speech.AlignWords(text, syn.DurationMs)
	}
	return speech.ClampBoundaries(bs, syn.DurationMs)
}

// play 返回的错误只有调用方取消；播放设备故障只记录日志，不影响合成结果。
func (s *Surface) play(ctx context.Context, syn *speech.Synthesis) error {
	if s.player == nil || len(syn.Samples) == 0 {
		return nil
	}

	if s.waitPlayback {
		if err := s.player.Play(ctx, syn.Samples, syn.SampleRate); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warnf("[command] 播放失败: %v", err)
		}
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		if err := s.player.Play(s.ctx, syn.Samples, syn.SampleRate); err != nil && s.ctx.Err() == nil {
			logger.Warnf("[command] 后台播放失败: %v", err)
		}
	}()
	return nil
}

func (s *Surface) record(req speech.Request, engine string, resp speech.Response, synErr error) {
	if s.history == nil {
		return
	}
	entry := history.Entry{
		Engine:     engine,
		Lang:       req.Lang,
		Rate:       req.Rate,
		Text:       req.Text,
		WordCount:  speech.CountWords(req.Text),
		DurationMs: resp.DurationMs,
		Success:    resp.Success,
	}
	if synErr != nil {
		entry.Error = synErr.Error()
	}
	// 调用方可能已经拿到结果并取消了 ctx，历史写入不跟随它
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Record(ctx, entry); err != nil {
		logger.Warnf("[command] 记录历史失败: %v", err)
	}
}

// SpeakResult 是 SpeakAsync 的结果。
type SpeakResult struct {
	Response speech.Response
	Err      error
}

// SpeakAsync 在独立的 goroutine 中执行 SpeakText，返回的 channel 恰好收到一个结果。
// 取消 ctx 会中止合成和播放，结果中的 Err 为 ctx.Err()。
func (s *Surface) SpeakAsync(ctx context.Context, req speech.Request) <-chan SpeakResult {
	ch := make(chan SpeakResult, 1)
	go func() {
		resp, err := s.SpeakText(ctx, req)
		ch <- SpeakResult{Response: resp, Err: err}
	}()
	return ch
}

// GetVoices 返回指定语言可用的语音名称，从不失败；没有语音时返回空列表。
func (s *Surface) GetVoices(ctx context.Context, tag string) []string {
	lister, ok := s.engine.(speech.VoiceLister)
	if !ok {
		return []string{}
	}

	// 原样传给引擎：english 这样的语言名称不限定地区，规范化会丢掉这个信息
	voicesCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	names, err := lister.Voices(voicesCtx, strings.TrimSpace(tag))
	if err != nil {
		if !errors.Is(err, speech.ErrUnsupported) {
			logger.Warnf("[command] get_voices(%q) 失败: %v", strings.TrimSpace(tag), err)
		}
		return []string{}
	}
	if names == nil {
		return []string{}
	}
	return names
}

// GetPreciseTime 返回毫秒精度的 Unix 时间戳，连续调用单调不减。
func (s *Surface) GetPreciseTime() uint64 {
	return s.clock.NowMs()
}

// Close 停止后台播放并等待其退出，然后关闭引擎。
func (s *Surface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return speech.Close(s.engine)
}
