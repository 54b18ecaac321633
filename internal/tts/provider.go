package tts

import (
	"context"
	"fmt"
)

// Provider names, in tier order: premium first, always-available last.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
)

// TierOrder is the static fallback chain walked by the orchestrator.
var TierOrder = []string{ProviderElevenLabs, ProviderOpenAI, ProviderGoogle}

// Provider abstracts a speech-synthesis vendor. Adapters perform exactly one
// attempt per call; retries and fallback belong to the orchestrator.
type Provider interface {
	GenerateAudio(ctx context.Context, req SynthesisRequest) ([]byte, error)
	Name() string
	Format() string // container format of returned audio: "mp3" or "wav"
}

// SynthesisRequest holds the parameters for one vendor call.
type SynthesisRequest struct {
	Text     string
	VoiceID  string
	Model    string
	Settings VoiceSettings
}

// VoiceSettings carries prosody knobs; adapters apply what their vendor
// supports and ignore the rest.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// ProviderError is a vendor-side failure: timeout, rate limit, 5xx, or an
// invalid voice. It drives breaker failures and fallback decisions and is
// never surfaced raw to callers.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
