package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestElevenLabsStream_DeliversChunksProgressively(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["model_id"] != "eleven_multilingual_v2" {
			t.Errorf("unexpected model %v", body["model_id"])
		}
		if body["language_code"] != "hi" {
			t.Errorf("expected hindi language code, got %v", body["language_code"])
		}
		fl := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 1024))
		fl.Flush()
		<-release // hold the stream open: the first chunk must arrive anyway
		w.Write(make([]byte, 512))
		fl.Flush()
	}))
	defer srv.Close()

	c := NewElevenLabsClient("key", "voice")
	c.BaseURL = srv.URL
	pcmCh, errCh := c.Stream(context.Background(), "namaste", "Hindi")

	select {
	case chunk := <-pcmCh:
		if len(chunk) == 0 {
			t.Fatalf("empty first chunk")
		}
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("first chunk did not arrive before stream end")
	}
	close(release)

	var total int
	for chunk := range pcmCh {
		total += len(chunk)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if total == 0 {
		t.Fatalf("expected remaining audio after release")
	}
}

func TestElevenLabsStream_HTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewElevenLabsClient("key", "voice")
	c.BaseURL = srv.URL
	pcmCh, errCh := c.Stream(context.Background(), "hello", "English")

	for range pcmCh {
	}
	if err := <-errCh; err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestElevenLabsStream_MissingCredentials(t *testing.T) {
	c := NewElevenLabsClient("", "")
	pcmCh, errCh := c.Stream(context.Background(), "hello", "English")
	for range pcmCh {
	}
	if err := <-errCh; err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
