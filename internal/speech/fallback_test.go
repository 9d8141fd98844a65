package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestFallbackEngine_SkipsUnsupported(t *testing.T) {
	first := &stubEngine{err: fmt.Errorf("wrap: %w", ErrUnsupported)}
	second := &stubEngine{syn: &Synthesis{DurationMs: 900}}
	e := NewFallbackEngine(FallbackConfig{Engines: []Engine{first, second}, Names: []string{"native", "estimate"}})

	syn, err := e.Synthesize(context.Background(), Request{Text: "a b c", Rate: 1})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if syn.Engine != "estimate" || syn.DurationMs != 900 {
		t.Errorf("got engine=%s duration=%d", syn.Engine, syn.DurationMs)
	}
}

func TestFallbackEngine_AllUnsupported(t *testing.T) {
	e := NewFallbackEngine(FallbackConfig{
		Engines: []Engine{UnsupportedEngine{}, UnsupportedEngine{}},
		Names:   []string{"a", "b"},
	})
	_, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 1})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestFallbackEngine_FailureCooldown(t *testing.T) {
	broken := &stubEngine{err: errors.New("connection refused")}
	good := &stubEngine{syn: &Synthesis{DurationMs: 10}}
	e := NewFallbackEngine(FallbackConfig{
		Engines:          []Engine{broken, good},
		Names:            []string{"edge", "native"},
		RecoveryInterval: time.Minute,
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 1}); err != nil {
			t.Fatalf("Synthesize failed: %v", err)
		}
	}
	if broken.callCount() != 1 {
		t.Errorf("broken engine should be tried once during cooldown, got %d", broken.callCount())
	}

	// 冷却结束后重新按优先级尝试
	now = now.Add(2 * time.Minute)
	broken.err = nil
	broken.syn = &Synthesis{DurationMs: 20}
	syn, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 1})
	if err != nil {
		t.Fatal(err)
	}
	if syn.Engine != "edge" {
		t.Errorf("expected recovered engine, got %s", syn.Engine)
	}
}

func TestFallbackEngine_AllFailed(t *testing.T) {
	e := NewFallbackEngine(FallbackConfig{
		Engines: []Engine{&stubEngine{err: errors.New("x")}, UnsupportedEngine{}},
		Names:   []string{"a", "b"},
	})
	_, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 1})
	if err == nil || errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want a synthesis failure", err)
	}
}

func TestFallbackEngine_InvalidRateStops(t *testing.T) {
	second := &stubEngine{syn: &Synthesis{}}
	e := NewFallbackEngine(FallbackConfig{
		Engines: []Engine{NewEstimateEngine(0), second},
		Names:   []string{"estimate", "other"},
	})
	_, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 0})
	if !errors.Is(err, ErrInvalidRate) {
		t.Errorf("err = %v, want ErrInvalidRate", err)
	}
	if second.callCount() != 0 {
		t.Error("should not try other engines after a parameter error")
	}
}

func TestFallbackEngine_ContextCanceled(t *testing.T) {
	second := &stubEngine{syn: &Synthesis{}}
	e := NewFallbackEngine(FallbackConfig{
		Engines: []Engine{&stubEngine{err: context.Canceled}, second},
		Names:   []string{"a", "b"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Synthesize(ctx, Request{Text: "hi", Rate: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if second.callCount() != 0 {
		t.Error("should stop after caller cancellation")
	}
}

func TestFallbackEngine_VoicesMerged(t *testing.T) {
	e := NewFallbackEngine(FallbackConfig{
		Engines: []Engine{
			&stubEngine{voices: []string{"Alex", "Samantha"}},
			&stubEngine{vErr: errors.New("offline")},
			&stubEngine{voices: []string{"Samantha", "Daniel"}},
		},
		Names: []string{"a", "b", "c"},
	})
	got, err := e.Voices(context.Background(), "en-US")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "Alex,Samantha,Daniel" {
		t.Errorf("Voices = %v", got)
	}
}

func TestFallbackEngine_VoicesEmpty(t *testing.T) {
	e := NewFallbackEngine(FallbackConfig{Engines: []Engine{UnsupportedEngine{}}, Names: []string{"native"}})
	got, err := e.Voices(context.Background(), "en-US")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Voices = %v, want empty non-nil", got)
	}
}

func TestFallbackEngine_Close(t *testing.T) {
	a, b := &stubEngine{}, &stubEngine{}
	e := NewFallbackEngine(FallbackConfig{Engines: []Engine{a, b}, Names: []string{"a", "b"}})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed {
		t.Error("all engines should be closed")
	}
}

func TestIsQuotaExhaustedError(t *testing.T) {
	if !IsQuotaExhaustedError(errors.New("[TencentCloudSDKError] Code=ResourceInsufficient")) {
		t.Error("expected quota error")
	}
	if IsQuotaExhaustedError(errors.New("timeout")) || IsQuotaExhaustedError(nil) {
		t.Error("unexpected quota error")
	}
}
