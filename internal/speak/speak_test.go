package speak

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"elevenlabs", "openai"} {
		p, err := New(name, Options{ElevenLabsKey: "k", OpenAIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}
	if _, err := New("polly", Options{}); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/voice-1") {
			t.Errorf("path = %q, want suffix /voice-1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("MP3DATA"))
	}))
	defer srv.Close()

	e := newElevenLabs("el-key", "voice-1")
	e.endpoint = srv.URL

	res, err := e.Synthesize(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "MP3DATA" || res.ContentType != "audio/mpeg" {
		t.Errorf("result = %+v", res)
	}
}

func TestElevenLabs_MissingKey(t *testing.T) {
	e := newElevenLabs("", "")
	if _, err := e.Synthesize(context.Background(), Request{Text: "x"}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestElevenLabs_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := newElevenLabs("el-key", "voice-1")
	e.endpoint = srv.URL

	_, err := e.Synthesize(context.Background(), Request{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want 429 mention", err)
	}
}
