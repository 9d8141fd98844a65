package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/iabetor/soundmirror/internal/speech"
)

func TestInvoke(t *testing.T) {
	s := New(Options{Engine: speech.NewEstimateEngine(0)})
	defer s.Close()
	ctx := context.Background()

	out, err := s.Invoke(ctx, CmdSpeakText, json.RawMessage(`{"request":{"text":"one two three","lang":"en","rate":2}}`))
	if err != nil {
		t.Fatalf("speak_text: %v", err)
	}
	resp, ok := out.(speech.Response)
	if !ok || resp.DurationMs != 450 {
		t.Errorf("speak_text = %#v", out)
	}

	out, err = s.Invoke(ctx, CmdGetVoices, json.RawMessage(`{"lang":"en-US"}`))
	if err != nil {
		t.Fatalf("get_voices: %v", err)
	}
	if voices, ok := out.([]string); !ok || len(voices) != 1 || voices[0] != "Default en-US" {
		t.Errorf("get_voices = %#v", out)
	}

	out, err = s.Invoke(ctx, CmdGetPreciseTime, nil)
	if err != nil {
		t.Fatalf("get_precise_time: %v", err)
	}
	if ms, ok := out.(uint64); !ok || ms == 0 {
		t.Errorf("get_precise_time = %#v", out)
	}
}

func TestInvoke_Errors(t *testing.T) {
	s := New(Options{Engine: speech.NewEstimateEngine(0)})
	defer s.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		args string
		want error
	}{
		{"open_window", `{}`, ErrUnknownCommand},
		{CmdSpeakText, `{}`, ErrBadArguments},
		{CmdSpeakText, `{"request":"hello"}`, ErrBadArguments},
		{CmdSpeakText, `not json`, ErrBadArguments},
		{CmdGetVoices, ``, ErrBadArguments},
		{CmdSpeakText, `{"request":{"text":"hi","lang":"en","rate":0}}`, speech.ErrInvalidRate},
	}
	for _, tt := range tests {
		_, err := s.Invoke(ctx, tt.name, json.RawMessage(tt.args))
		if !errors.Is(err, tt.want) {
			t.Errorf("Invoke(%s, %s) err = %v, want %v", tt.name, tt.args, err, tt.want)
		}
	}
}
