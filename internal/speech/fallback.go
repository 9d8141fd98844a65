package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iabetor/soundmirror/internal/logger"
)

// FallbackEngine 多层兜底 TTS 引擎。
// 按优先级依次尝试各引擎：不支持的引擎直接跳过，
// 合成失败的引擎进入冷却期，冷却期内排到队尾，避免每次请求都先等它失败。
type FallbackEngine struct {
	engines []Engine
	names   []string

	mu       sync.Mutex
	failedAt map[int]time.Time

	recoveryInterval time.Duration
	now              func() time.Time
}

// FallbackConfig 兜底引擎配置
type FallbackConfig struct {
	// 引擎列表（按优先级排序）
	Engines []Engine
	// 引擎名称（用于日志和历史记录），与 Engines 一一对应
	Names []string
	// 失败引擎的冷却时间（默认 5 分钟）
	RecoveryInterval time.Duration
}

// NewFallbackEngine 创建多层兜底引擎。
func NewFallbackEngine(cfg FallbackConfig) *FallbackEngine {
	if len(cfg.Engines) == 0 {
		panic("FallbackEngine: 至少需要一个引擎")
	}
	if len(cfg.Engines) != len(cfg.Names) {
		panic("FallbackEngine: Engines 和 Names 长度必须一致")
	}

	recoveryInterval := cfg.RecoveryInterval
	if recoveryInterval == 0 {
		recoveryInterval = 5 * time.Minute
	}

	logger.Infof("[speech] Fallback 引擎已初始化，优先级: %s", strings.Join(cfg.Names, " > "))
	return &FallbackEngine{
		engines:          cfg.Engines,
		names:            cfg.Names,
		failedAt:         make(map[int]time.Time),
		recoveryInterval: recoveryInterval,
		now:              time.Now,
	}
}

// Synthesize 实现 Engine 接口。
// 所有引擎都不支持时返回 ErrUnsupported；参数错误和 ctx 取消立即返回，不再尝试其他引擎。
func (e *FallbackEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	var lastErr error
	for _, i := range e.order() {
		syn, err := e.engines[i].Synthesize(ctx, req)
		if err == nil {
			e.markRecovered(i)
			syn.Engine = e.names[i]
			return syn, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrTextTooLong):
			return nil, err
		case errors.Is(err, ErrUnsupported):
			logger.Debugf("[speech] 引擎 %s 不可用，跳过: %v", e.names[i], err)
			continue
		}

		if IsQuotaExhaustedError(err) {
			logger.Warnf("[speech] 引擎 %s 额度耗尽，切换到下一个引擎", e.names[i])
		} else {
			logger.Warnf("[speech] 引擎 %s 合成失败，切换到下一个引擎: %v", e.names[i], err)
		}
		e.markFailed(i)
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("[speech] 所有引擎均合成失败: %w", lastErr)
	}
	return nil, ErrUnsupported
}

// order 返回本次尝试的引擎顺序：不在冷却期的按优先级在前，冷却中的排在后面。
func (e *FallbackEngine) order() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ready := make([]int, 0, len(e.engines))
	var cooling []int
	for i := range e.engines {
		if failedAt, ok := e.failedAt[i]; ok && now.Sub(failedAt) < e.recoveryInterval {
			cooling = append(cooling, i)
			continue
		}
		ready = append(ready, i)
	}
	return append(ready, cooling...)
}

func (e *FallbackEngine) markFailed(i int) {
	e.mu.Lock()
	e.failedAt[i] = e.now()
	e.mu.Unlock()
}

func (e *FallbackEngine) markRecovered(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.failedAt[i]; ok {
		delete(e.failedAt, i)
		logger.Infof("[speech] 引擎已恢复: %s", e.names[i])
	}
}

// Voices 实现 VoiceLister 接口。
// 并发查询所有能列出语音的引擎，按优先级合并去重；单个引擎失败不影响结果。
func (e *FallbackEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	results := make([][]string, len(e.engines))
	g, gctx := errgroup.WithContext(ctx)
	for i, engine := range e.engines {
		lister, ok := engine.(VoiceLister)
		if !ok {
			continue
		}
		i := i
		g.Go(func() error {
			names, err := lister.Voices(gctx, tag)
			if err != nil {
				if !errors.Is(err, ErrUnsupported) && ctx.Err() == nil {
					logger.Warnf("[speech] 引擎 %s 获取语音列表失败: %v", e.names[i], err)
				}
				return nil
			}
			results[i] = names
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := []string{}
	seen := make(map[string]bool)
	for _, names := range results {
		for _, n := range names {
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			merged = append(merged, n)
		}
	}
	return merged, nil
}

// Names 返回引擎名称（按优先级）。
func (e *FallbackEngine) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Close 关闭所有引擎。
func (e *FallbackEngine) Close() error {
	var errs []error
	for i, engine := range e.engines {
		if err := Close(engine); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.names[i], err))
		}
	}
	logger.Info("[speech] Fallback 引擎已关闭")
	return errors.Join(errs...)
}

// IsQuotaExhaustedError 判断是否为云服务额度耗尽错误。
func IsQuotaExhaustedError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()

	quotaErrors := []string{
		"ResourceInsufficient",      // 腾讯云资源不足
		"QuotaExhausted",            // 额度耗尽
		"InvalidParameter.Resource", // 资源不存在（可能免费额度用完）
		"insufficient_quota",        // OpenAI
	}

	for _, code := range quotaErrors {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	return false
}
