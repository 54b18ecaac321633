package tts

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fablehq/storyvoice/internal/audiocache"
	"github.com/fablehq/storyvoice/internal/config"
	"github.com/fablehq/storyvoice/internal/quota"
	"github.com/fablehq/storyvoice/internal/storage"
	"github.com/fablehq/storyvoice/internal/tts/breaker"
	"github.com/fablehq/storyvoice/internal/voice"
)

// FromConfig assembles the orchestration engine from application config.
// Providers whose credentials are absent are left out of the chain; the
// fallback walk skips them.
func FromConfig(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) (*Orchestrator, error) {
	var providers []Provider

	if cfg.TTS.ElevenLabsKey != "" {
		providers = append(providers, NewElevenLabs(ElevenLabsConfig{
			APIKey:  cfg.TTS.ElevenLabsKey,
			Model:   cfg.TTS.ElevenLabsModel,
			Timeout: cfg.TTS.CallTimeout,
		}))
	} else {
		slog.Warn("elevenlabs key missing, premium tier disabled")
	}

	if cfg.TTS.OpenAIKey != "" {
		providers = append(providers, NewOpenAITTS(OpenAIConfig{
			APIKey:  cfg.TTS.OpenAIKey,
			Model:   cfg.TTS.OpenAIModel,
			Timeout: cfg.TTS.CallTimeout,
		}))
	} else {
		slog.Warn("openai key missing, mid tier disabled")
	}

	google, err := NewGoogleTTS(ctx, GoogleConfig{
		Voice:   cfg.TTS.GoogleVoice,
		Timeout: cfg.TTS.CallTimeout,
	})
	if err != nil {
		slog.Warn("google tts unavailable, base tier disabled", "error", err)
	} else {
		providers = append(providers, google)
	}

	breakers := breaker.NewRegistry(map[string]breaker.Settings{
		ProviderElevenLabs: {
			FailureThreshold: cfg.TTS.ElevenLabsBreaker.FailureThreshold,
			ResetTimeout:     cfg.TTS.ElevenLabsBreaker.ResetTimeout,
		},
		ProviderOpenAI: {
			FailureThreshold: cfg.TTS.OpenAIBreaker.FailureThreshold,
			ResetTimeout:     cfg.TTS.OpenAIBreaker.ResetTimeout,
		},
		ProviderGoogle: {
			FailureThreshold: cfg.TTS.GoogleBreaker.FailureThreshold,
			ResetTimeout:     cfg.TTS.GoogleBreaker.ResetTimeout,
		},
	})

	objects := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)

	limits := quota.DefaultLimits()
	if cfg.Quota.PremiumVoicesPerStory > 0 {
		limits.PremiumVoicesPerStory = cfg.Quota.PremiumVoicesPerStory
	}

	return NewOrchestrator(
		providers,
		breakers,
		audiocache.NewPostgresStore(db),
		objects,
		voice.NewCatalog(db),
		quota.NewRedisGate(db, rdb, limits),
		Config{
			MaxInputChars:    cfg.TTS.MaxInputChars,
			ParagraphWords:   cfg.TTS.ParagraphWords,
			MaxParagraphs:    cfg.TTS.MaxParagraphs,
			BatchConcurrency: cfg.TTS.BatchConcurrency,
		},
	), nil
}
