package speech

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iabetor/soundmirror/internal/audio"
)

func TestPiperEngine_Synthesize(t *testing.T) {
	runner := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return audio.Int16ToBytes(make([]int16, 11025)), nil
	}}
	e := &PiperEngine{modelPath: "/models/en_US-lessac-medium.onnx", sampleRate: piperSampleRate, run: runner.run}

	syn, err := e.Synthesize(context.Background(), Request{Text: "hello", Lang: "en-US", Rate: 2})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if syn.DurationMs != 500 {
		t.Errorf("duration = %d, want 500", syn.DurationMs)
	}
	if !strings.Contains(runner.calls[0], "--length_scale 0.5") {
		t.Errorf("rate 2 should halve length_scale: %s", runner.calls[0])
	}
}

func TestPiperEngine_Voices(t *testing.T) {
	e := &PiperEngine{modelPath: "/models/en_US-lessac-medium.onnx"}
	got, _ := e.Voices(context.Background(), "en")
	if len(got) != 1 || got[0] != "en_US-lessac-medium" {
		t.Errorf("Voices(en) = %v", got)
	}
	got, _ = e.Voices(context.Background(), "fr-FR")
	if got == nil || len(got) != 0 {
		t.Errorf("Voices(fr-FR) = %v, want empty", got)
	}
}

func TestPiperModelSampleRate(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "de_DE-thorsten-low.onnx")
	if got := piperModelSampleRate(model); got != piperSampleRate {
		t.Errorf("missing json: got %d", got)
	}
	if err := writeFile(model+".json", []byte(`{"audio":{"sample_rate":16000}}`)); err != nil {
		t.Fatal(err)
	}
	if got := piperModelSampleRate(model); got != 16000 {
		t.Errorf("got %d, want 16000", got)
	}
}

func TestPiperLengthScale(t *testing.T) {
	tests := []struct {
		rate float32
		want string
	}{
		{1, "1"},
		{2, "0.5"},
		{0.5, "2"},
		{0.3, "3.333"},
		{2500, "0.1"},
		{1e6, "0.1"},
		{1e-30, "10"},
	}
	for _, tt := range tests {
		if got := piperLengthScale(tt.rate); got != tt.want {
			t.Errorf("piperLengthScale(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}
