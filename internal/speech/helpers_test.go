package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"
)

// testWAV 构造 numSamples 个样本的 16-bit 单声道 WAV。
func testWAV(sampleRate, numSamples int) []byte {
	var b []byte
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+numSamples*2))
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*2))
	b = binary.LittleEndian.AppendUint16(b, 2)
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(numSamples*2))
	for i := 0; i < numSamples; i++ {
		b = binary.LittleEndian.AppendUint16(b, uint16(int16(i%100)))
	}
	return b
}

// fakeRunner 记录调用并按命令名返回预设结果。
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	stdin  [][]byte
	handle func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.stdin = append(f.stdin, stdin)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.handle == nil {
		return nil, fmt.Errorf("unexpected command %s", name)
	}
	return f.handle(name, args)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// stubEngine 是可编程的 Engine，用于兜底链测试。
type stubEngine struct {
	mu     sync.Mutex
	calls  int
	syn    *Synthesis
	err    error
	voices []string
	vErr   error
	closed bool
}

func (s *stubEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	syn := *s.syn
	return &syn, nil
}

func (s *stubEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	return s.voices, s.vErr
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func (s *stubEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
