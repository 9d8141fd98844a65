package speech

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestParseSAPIProgress(t *testing.T) {
	out := "W\t0\t0\tHello\r\nW\t420\t6\tworld\r\nnoise\nW\tbad\t0\tx\nW\t900\t12\t \n"
	bs := parseSAPIProgress([]byte(out))
	if len(bs) != 2 {
		t.Fatalf("expected 2 boundaries, got %d: %v", len(bs), bs)
	}
	if bs[0].Word != "Hello" || bs[0].StartMs != 0 {
		t.Errorf("bs[0] = %+v", bs[0])
	}
	if bs[1].Word != "world" || bs[1].StartMs != 420 {
		t.Errorf("bs[1] = %+v", bs[1])
	}
}

func TestParseSAPIVoices(t *testing.T) {
	out := "Microsoft David Desktop\ten-US\r\nMicrosoft Hedda Desktop\tde-DE\r\n\n"
	voices := parseSAPIVoices([]byte(out))
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %v", voices)
	}
	if voices[1].Name != "Microsoft Hedda Desktop" || voices[1].Locale != "de-DE" {
		t.Errorf("voices[1] = %+v", voices[1])
	}
}

func TestSAPIRate(t *testing.T) {
	tests := []struct {
		rate float32
		want int
	}{
		{1, 0},
		{3, 10},
		{9, 10},
		{1.0 / 3, -10},
		{0.01, -10},
		{2, 6},
	}
	for _, tt := range tests {
		if got := sapiRate(tt.rate); got != tt.want {
			t.Errorf("sapiRate(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestPSQuote(t *testing.T) {
	if got := psQuote("it's"); got != "'it''s'" {
		t.Errorf("psQuote = %s", got)
	}
}

func TestEncodePowerShell(t *testing.T) {
	encoded, err := encodePowerShell("Write-Host 你好")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != "Write-Host 你好" {
		t.Errorf("decoded = %q", decoded)
	}
}

func TestSAPIEngine_Synthesize(t *testing.T) {
	runner := &fakeRunner{}
	runner.handle = func(name string, args []string) ([]byte, error) {
		raw, _ := base64.StdEncoding.DecodeString(args[len(args)-1])
		script, _ := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		s := string(script)
		if strings.Contains(s, "GetInstalledVoices") {
			return []byte("Microsoft Zira Desktop\ten-US\n"), nil
		}
		start := strings.Index(s, "$out = '") + len("$out = '")
		end := strings.Index(s[start:], "'")
		if err := writeFile(s[start:start+end], testWAV(22050, 22050)); err != nil {
			return nil, err
		}
		if !strings.Contains(s, "$voice = 'Microsoft Zira Desktop'") {
			t.Errorf("voice not selected in script")
		}
		return []byte("W\t0\t0\tHello\nW\t500\t6\tworld\n"), nil
	}
	e := &SAPIEngine{run: runner.run}

	syn, err := e.Synthesize(context.Background(), Request{Text: "Hello world", Lang: "en-US", Rate: 1})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if syn.DurationMs != 1000 {
		t.Errorf("duration = %d, want 1000", syn.DurationMs)
	}
	want := []WordBoundary{{"Hello", 0, 500}, {"world", 500, 1000}}
	if len(syn.Boundaries) != 2 || syn.Boundaries[0] != want[0] || syn.Boundaries[1] != want[1] {
		t.Errorf("boundaries = %v, want %v", syn.Boundaries, want)
	}
}
