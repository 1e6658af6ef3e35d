// Package tts streams synthesized speech as 48kHz PCM chunks.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// languageCodes maps conversation language names to vendor language codes.
var languageCodes = map[string]string{
	"english": "en",
	"hindi":   "hi",
}

// ElevenLabsClient streams TTS over the HTTP streaming endpoint.
type ElevenLabsClient struct {
	APIKey  string
	VoiceID string
	BaseURL string // override for tests; default api.elevenlabs.io
}

func NewElevenLabsClient(apiKey, voiceID string) *ElevenLabsClient {
	return &ElevenLabsClient{APIKey: apiKey, VoiceID: voiceID}
}

// Stream opens a chunked byte stream of PCM_48000 audio for the given text
// and language. Chunks are delivered progressively as the vendor produces
// them.
func (e *ElevenLabsClient) Stream(ctx context.Context, text, language string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)
	go func() {
		defer close(pcmCh)
		defer close(errCh)
		if e.APIKey == "" || e.VoiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: api key or voice id missing")
			return
		}
		if err := e.httpStream(ctx, text, language, pcmCh); err != nil {
			errCh <- err
		}
	}()
	return pcmCh, errCh
}

func (e *ElevenLabsClient) httpStream(ctx context.Context, text, language string, pcmCh chan<- []byte) error {
	base := e.BaseURL
	if base == "" {
		base = "https://api.elevenlabs.io"
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("elevenlabs: bad base url: %w", err)
	}
	u.Path = "/v1/text-to-speech/" + e.VoiceID + "/stream"
	q := u.Query()
	q.Set("output_format", "pcm_48000")
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_multilingual_v2",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	if code, ok := languageCodes[strings.ToLower(language)]; ok {
		body["language_code"] = code
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs http stream error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}

	bufChunk := make([]byte, 4096)
	logged := false
	for {
		n, rerr := resp.Body.Read(bufChunk)
		if n > 0 {
			if !logged {
				log.Printf("elevenlabs: receiving audio stream (%d bytes first chunk)", n)
				logged = true
			}
			out := make([]byte, n)
			copy(out, bufChunk[:n])
			select {
			case pcmCh <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return fmt.Errorf("elevenlabs http read error: %w", rerr)
		}
	}
}
