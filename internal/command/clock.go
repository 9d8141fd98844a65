package command

import (
	"sync/atomic"
	"time"
)

// Clock 提供毫秒精度、单调不减的 Unix 时间戳，用于前端动画同步。
// 构造时记录一次墙上时间，之后只累加 Go 运行时的单调时钟读数，
// 因此系统时间被回拨或 NTP 校时不会让时间戳倒退。
type Clock struct {
	anchor   time.Time // 带单调时钟读数
	anchorMs uint64
	last     atomic.Uint64
}

// NewClock 以当前时间为锚点创建时钟。
// 主机时间早于 Unix 纪元时无法给出有意义的时间戳，直接 panic。
func NewClock() *Clock {
	return newClock(time.Now())
}

func newClock(now time.Time) *Clock {
	ms := now.UnixMilli()
	if ms < 0 {
		panic("command: 系统时间早于 Unix 纪元: " + now.String())
	}
	return &Clock{anchor: now, anchorMs: uint64(ms)}
}

// NowMs 返回自 Unix 纪元以来的毫秒数。并发调用安全，返回值从不减小。
func (c *Clock) NowMs() uint64 {
	now := c.anchorMs + uint64(time.Since(c.anchor).Milliseconds())
	for {
		last := c.last.Load()
		if now <= last {
			return last
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
