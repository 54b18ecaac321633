package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fablehq/storyvoice/internal/tts/audio"
	"github.com/fablehq/storyvoice/internal/tts/text"
)

// ElevenLabsConfig holds configuration for the premium vendor.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string        // default: "https://api.elevenlabs.io"
	Model   string        // default: "eleven_multilingual_v2"
	Timeout time.Duration // per-call hard timeout
}

// ElevenLabs synthesizes speech via the ElevenLabs HTTP API.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

// elevenLabs caps: request payloads above maxChars are pre-split, responses
// above maxAudioBytes are rejected.
const (
	elevenLabsMaxChars  = 4000
	elevenLabsMaxAudio  = 32 << 20
	elevenLabsModelFall = "eleven_multilingual_v2"
)

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsModelFall
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ElevenLabs{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *ElevenLabs) Name() string   { return ProviderElevenLabs }
func (e *ElevenLabs) Format() string { return "mp3" }

// GenerateAudio converts text to MP3 audio. Oversized text is split into
// vendor-safe pieces and the resulting buffers merged.
func (e *ElevenLabs) GenerateAudio(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	chunks := text.SplitForVendor(req.Text, elevenLabsMaxChars)

	buffers := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		buf, err := e.synthesize(ctx, chunk, req)
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, buf)
	}

	merged, err := audio.Merge(e.Format(), buffers)
	if err != nil {
		return nil, &ProviderError{Provider: e.Name(), Code: "merge_failed", Err: err}
	}
	return merged, nil
}

func (e *ElevenLabs) synthesize(ctx context.Context, chunk string, req SynthesisRequest) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = e.cfg.Model
	}

	body := map[string]any{
		"text":     chunk,
		"model_id": model,
	}
	if req.Settings.Stability > 0 || req.Settings.SimilarityBoost > 0 {
		body["voice_settings"] = map[string]any{
			"stability":        req.Settings.Stability,
			"similarity_boost": req.Settings.SimilarityBoost,
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.cfg.BaseURL, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		code := "request_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		return nil, &ProviderError{Provider: e.Name(), Code: code, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{
			Provider:   e.Name(),
			StatusCode: resp.StatusCode,
			Code:       statusCode(resp.StatusCode),
			Err:        fmt.Errorf("elevenlabs: %s", string(respBody)),
		}
	}

	return readCapped(resp.Body, elevenLabsMaxAudio, e.Name())
}

// readCapped reads at most max bytes of audio, failing instead of silently
// truncating an oversized vendor response.
func readCapped(r io.Reader, max int64, provider string) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Code: "read_failed", Err: err}
	}
	if int64(len(buf)) > max {
		return nil, &ProviderError{Provider: provider, Code: "response_too_large", Err: fmt.Errorf("audio exceeds %d bytes", max)}
	}
	return buf, nil
}

func statusCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusNotFound, status == http.StatusBadRequest:
		return "invalid_voice"
	case status >= 500:
		return "server_error"
	default:
		return "request_failed"
	}
}
