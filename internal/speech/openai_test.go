package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOpenAITestServer(t *testing.T, wav []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/audio/speech"):
			body, _ := io.ReadAll(r.Body)
			var req map[string]interface{}
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("invalid request body: %v", err)
			}
			if req["response_format"] != "wav" {
				t.Errorf("response_format = %v, want wav", req["response_format"])
			}
			if req["speed"] != 4.0 {
				t.Errorf("speed = %v, want clamped to 4", req["speed"])
			}
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wav)
		case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"text":"hello world","words":[{"word":"hello","start":0.0,"end":0.4},{"word":"world","start":0.45,"end":0.9}]}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOpenAIEngine_Synthesize(t *testing.T) {
	server := newOpenAITestServer(t, testWAV(24000, 24000))
	defer server.Close()

	e, err := NewOpenAIEngine(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	syn, err := e.Synthesize(context.Background(), Request{Text: "hello world", Rate: 10})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if syn.DurationMs != 1000 {
		t.Errorf("duration = %d, want 1000", syn.DurationMs)
	}
	if len(syn.Boundaries) != 0 {
		t.Errorf("word timestamps disabled, got %v", syn.Boundaries)
	}
}

func TestOpenAIEngine_WordTimestamps(t *testing.T) {
	server := newOpenAITestServer(t, testWAV(24000, 24000))
	defer server.Close()

	e, err := NewOpenAIEngine(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1", WordTimestamps: true})
	if err != nil {
		t.Fatal(err)
	}
	syn, err := e.Synthesize(context.Background(), Request{Text: "hello world", Rate: 10})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	want := []WordBoundary{{"hello", 0, 400}, {"world", 450, 900}}
	if len(syn.Boundaries) != 2 || syn.Boundaries[0] != want[0] || syn.Boundaries[1] != want[1] {
		t.Errorf("boundaries = %v, want %v", syn.Boundaries, want)
	}
}

func TestOpenAIEngine_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer server.Close()

	e, _ := NewOpenAIEngine(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1"})
	if _, err := e.Synthesize(context.Background(), Request{Text: "hi", Rate: 1}); err == nil {
		t.Error("expected error")
	}
}

func TestNewOpenAIEngine_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEngine(OpenAIConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestOpenAIEngine_Voices(t *testing.T) {
	e, _ := NewOpenAIEngine(OpenAIConfig{APIKey: "k"})
	got, _ := e.Voices(context.Background(), "fr-FR")
	if len(got) != 6 || got[0] != "alloy" {
		t.Errorf("Voices = %v", got)
	}
}
