package speech

import (
	"context"
	"errors"
	"math"
	"testing"

	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"
)

type fakeTencentClient struct {
	req  *tts.TextToVoiceRequest
	resp *tts.TextToVoiceResponse
	err  error
}

func (f *fakeTencentClient) TextToVoiceWithContext(ctx context.Context, req *tts.TextToVoiceRequest) (*tts.TextToVoiceResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestNewTencentEngine_RequiresCredentials(t *testing.T) {
	if _, err := NewTencentEngine(TencentConfig{SecretID: "id"}); err == nil {
		t.Error("expected error without SecretKey")
	}
}

func TestTencentEngine_RequestParameters(t *testing.T) {
	client := &fakeTencentClient{err: errors.New("InternalError")}
	e := &TencentEngine{client: client, voiceType: 101001}

	_, err := e.Synthesize(context.Background(), Request{Text: "hello world", Lang: "en-US", Rate: 1.2})
	if err == nil {
		t.Fatal("expected error")
	}
	req := client.req
	if req == nil {
		t.Fatal("request not sent")
	}
	if *req.Text != "hello world" || *req.VoiceType != 101001 {
		t.Errorf("unexpected request: text=%s voice=%d", *req.Text, *req.VoiceType)
	}
	if *req.PrimaryLanguage != 2 {
		t.Errorf("PrimaryLanguage = %d, want 2 for English", *req.PrimaryLanguage)
	}
	if math.Abs(*req.Speed-1) > 1e-9 {
		t.Errorf("Speed = %v, want 1", *req.Speed)
	}
	if req.EnableSubtitle == nil || !*req.EnableSubtitle {
		t.Error("EnableSubtitle should be set")
	}
	if req.SessionId == nil || *req.SessionId == "" {
		t.Error("SessionId should be set")
	}
}

func TestTencentEngine_EmptyResponse(t *testing.T) {
	e := &TencentEngine{client: &fakeTencentClient{resp: &tts.TextToVoiceResponse{}}, voiceType: 1001}
	if _, err := e.Synthesize(context.Background(), Request{Text: "你好", Rate: 1}); err == nil {
		t.Error("expected error for response without audio")
	}
}

func TestTencentSpeed(t *testing.T) {
	tests := []struct {
		rate float32
		want float64
	}{
		{0.1, -2},
		{0.6, -2},
		{0.7, -1.5},
		{1.0, 0},
		{1.5, 2},
		{2.0, 4},
		{5.0, 6},
	}
	for _, tt := range tests {
		if got := tencentSpeed(tt.rate); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("tencentSpeed(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestTencentEngine_Voices(t *testing.T) {
	e := &TencentEngine{voiceType: 1001}
	got, _ := e.Voices(context.Background(), "zh-CN")
	if len(got) != 1 || got[0] != "1001" {
		t.Errorf("Voices(zh-CN) = %v", got)
	}
	got, _ = e.Voices(context.Background(), "ja-JP")
	if got == nil || len(got) != 0 {
		t.Errorf("Voices(ja-JP) = %v, want empty", got)
	}
}
