package speech

import "context"

// UnsupportedEngine 用于没有系统 TTS 的平台，合成总是返回 ErrUnsupported。
type UnsupportedEngine struct{}

// Synthesize 实现 Engine 接口。
func (UnsupportedEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	return nil, ErrUnsupported
}

// Voices 实现 VoiceLister 接口，总是返回空列表。
func (UnsupportedEngine) Voices(ctx context.Context, lang string) ([]string, error) {
	return []string{}, nil
}
