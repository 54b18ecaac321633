package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"github.com/fablehq/storyvoice/internal/tts/audio"
	"github.com/fablehq/storyvoice/internal/tts/text"
)

// GoogleConfig holds configuration for the always-available fallback tier.
type GoogleConfig struct {
	Voice   string        // default voice name, e.g. "en-US-Neural2-F"
	Timeout time.Duration // per-call hard timeout
}

// GoogleTTS synthesizes speech via Google Cloud Text-to-Speech. Credentials
// come from the ambient application-default environment.
type GoogleTTS struct {
	cfg    GoogleConfig
	client *texttospeech.Client
}

const googleMaxChars = 4500 // API caps input at 5000 bytes

func NewGoogleTTS(ctx context.Context, cfg GoogleConfig) (*GoogleTTS, error) {
	if cfg.Voice == "" {
		cfg.Voice = "en-US-Neural2-F"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create texttospeech client: %w", err)
	}

	return &GoogleTTS{cfg: cfg, client: client}, nil
}

func (g *GoogleTTS) Name() string   { return ProviderGoogle }
func (g *GoogleTTS) Format() string { return "mp3" }

func (g *GoogleTTS) Close() error { return g.client.Close() }

func (g *GoogleTTS) GenerateAudio(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = g.cfg.Voice
	}

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	if req.Settings.Speed > 0 {
		audioCfg.SpeakingRate = req.Settings.Speed
	}

	chunks := text.SplitForVendor(req.Text, googleMaxChars)
	buffers := make([][]byte, 0, len(chunks))

	for _, chunk := range chunks {
		sReq := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: languageFromVoice(voice),
				Name:         voice,
			},
			AudioConfig: audioCfg,
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		resp, err := g.client.SynthesizeSpeech(callCtx, sReq)
		cancel()
		if err != nil {
			return nil, &ProviderError{Provider: g.Name(), Code: "synthesis_failed", Err: err}
		}
		buffers = append(buffers, resp.AudioContent)
	}

	merged, err := audio.Merge(g.Format(), buffers)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Code: "merge_failed", Err: err}
	}
	return merged, nil
}

// languageFromVoice extracts the language code from a Google voice name
// ("en-GB-Neural2-A" -> "en-GB").
func languageFromVoice(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}
