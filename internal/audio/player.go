package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/soundmirror/internal/logger"
)

// Player 使用 malgo (miniaudio) 在默认扬声器上播放合成的单声道语音。
// 多个 speak_text 请求可以并发调用 Play，每次播放独立打开一个设备。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewPlayer 创建播放器并初始化 miniaudio 上下文。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// Play 播放 float32 单声道样本，阻塞直到播放完成或 ctx 被取消。
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("无效的采样率: %d", sampleRate)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("播放器已关闭")
	}
	mctx := p.ctx.Context
	p.mu.Unlock()

	pcmBytes := Float32ToBytes(samples)
	pos := 0
	done := make(chan struct{})
	var once sync.Once

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = 512
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			need := int(frameCount) * 2
			if need > len(output) {
				need = len(output)
			}
			n := copy(output[:need], pcmBytes[pos:])
			pos += n
			// 数据不够时剩余部分填充静音
			for i := n; i < need; i++ {
				output[i] = 0
			}
			if pos >= len(pcmBytes) {
				once.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(mctx, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	defer device.Stop()

	start := time.Now()
	select {
	case <-ctx.Done():
		logger.Debugf("[audio] 播放被取消（已播放 %v）", time.Since(start).Round(time.Millisecond))
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成，时长 %dms", DurationMs(len(samples), sampleRate))
		return nil
	}
}

// Close 释放所有资源。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
