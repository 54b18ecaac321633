package tts

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fablehq/storyvoice/internal/tts/audio"
	"github.com/fablehq/storyvoice/internal/tts/text"
)

// OpenAIConfig holds configuration for the mid-tier vendor.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // default: "tts-1"
	Timeout time.Duration // per-call hard timeout
}

// OpenAITTS synthesizes speech via OpenAI's speech endpoint.
type OpenAITTS struct {
	cfg    OpenAIConfig
	client *openai.Client
}

const (
	openAIMaxChars = 4000 // endpoint caps input at 4096 characters
	openAIMaxAudio = 32 << 20
)

func NewOpenAITTS(cfg OpenAIConfig) *OpenAITTS {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAITTS{
		cfg:    cfg,
		client: openai.NewClient(cfg.APIKey),
	}
}

func (o *OpenAITTS) Name() string   { return ProviderOpenAI }
func (o *OpenAITTS) Format() string { return "mp3" }

func (o *OpenAITTS) GenerateAudio(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	model := req.Model
	if model == "" {
		model = o.cfg.Model
	}

	chunks := text.SplitForVendor(req.Text, openAIMaxChars)
	buffers := make([][]byte, 0, len(chunks))

	for _, chunk := range chunks {
		sReq := openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(model),
			Input:          chunk,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormatMp3,
		}
		if req.Settings.Speed > 0 {
			sReq.Speed = req.Settings.Speed
		}

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		stream, err := o.client.CreateSpeech(callCtx, sReq)
		if err != nil {
			cancel()
			return nil, &ProviderError{Provider: o.Name(), Code: "synthesis_failed", Err: err}
		}

		buf, err := readCapped(stream, openAIMaxAudio, o.Name())
		stream.Close()
		cancel()
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, buf)
	}

	merged, err := audio.Merge(o.Format(), buffers)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Code: "merge_failed", Err: err}
	}
	return merged, nil
}
