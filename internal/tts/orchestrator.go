package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fablehq/storyvoice/internal/audiocache"
	"github.com/fablehq/storyvoice/internal/models"
	"github.com/fablehq/storyvoice/internal/quota"
	"github.com/fablehq/storyvoice/internal/storage"
	"github.com/fablehq/storyvoice/internal/tts/breaker"
	"github.com/fablehq/storyvoice/internal/tts/text"
	"github.com/fablehq/storyvoice/internal/voice"
)

var (
	// ErrInputTooLarge rejects single-paragraph input above the configured
	// ceiling before any provider is called.
	ErrInputTooLarge = errors.New("input text too large")
	// ErrAllProvidersExhausted means every reachable provider failed or
	// had an open circuit.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Config tunes the orchestration engine.
type Config struct {
	MaxInputChars    int      // single-paragraph input ceiling
	ParagraphWords   int      // target paragraph size for batch splitting
	MaxParagraphs    int      // batch paragraph cap
	BatchConcurrency int      // workers per batch generation pass
	Order            []string // provider tier order, premium first
}

func DefaultConfig() Config {
	return Config{
		MaxInputChars:    5000,
		ParagraphWords:   text.DefaultParagraphWords,
		MaxParagraphs:    50,
		BatchConcurrency: 5,
		Order:            TierOrder,
	}
}

// GenerateOptions alter one Generate call. Batch workers use them to pin a
// pre-decided provider with the quota check already settled.
type GenerateOptions struct {
	// ForceProvider restricts the call to a single provider, disabling
	// fallback.
	ForceProvider string
	// SkipQuotaCheck trusts that the premium-tier decision was already
	// made for this story.
	SkipQuotaCheck bool
}

// Orchestrator routes synthesis across the provider chain under breaker
// guard, caching every produced paragraph. It owns no mutable state of its
// own beyond the shared breaker registry.
type Orchestrator struct {
	providers map[string]Provider
	breakers  *breaker.Registry
	cache     audiocache.Store
	objects   storage.ObjectStore
	catalog   voice.Resolver
	gate      quota.Gate
	cfg       Config
}

func NewOrchestrator(
	providers []Provider,
	breakers *breaker.Registry,
	cache audiocache.Store,
	objects storage.ObjectStore,
	catalog voice.Resolver,
	gate quota.Gate,
	cfg Config,
) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = def.MaxInputChars
	}
	if cfg.ParagraphWords <= 0 {
		cfg.ParagraphWords = def.ParagraphWords
	}
	if cfg.MaxParagraphs <= 0 {
		cfg.MaxParagraphs = def.MaxParagraphs
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}
	if len(cfg.Order) == 0 {
		cfg.Order = def.Order
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &Orchestrator{
		providers: byName,
		breakers:  breakers,
		cache:     cache,
		objects:   objects,
		catalog:   catalog,
		gate:      gate,
		cfg:       cfg,
	}
}

// Breakers exposes the shared registry for read-only health reporting.
func (o *Orchestrator) Breakers() *breaker.Registry { return o.breakers }

// Generate synthesizes one paragraph and returns its audio URL. The cache is
// consulted first; on a miss the provider chain is walked in tier order,
// skipping providers with open circuits, until one produces audio.
func (o *Orchestrator) Generate(ctx context.Context, storyID, input, voiceRef, userID string, opts *GenerateOptions) (string, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}

	if n := utf8.RuneCountInString(input); n > o.cfg.MaxInputChars {
		return "", fmt.Errorf("%w: %d chars, limit %d", ErrInputTooLarge, n, o.cfg.MaxInputChars)
	}

	normalized := text.Normalize(input)
	hash := text.Hash(input)

	url, err := o.cache.FindLatest(ctx, storyID, hash, voiceRef, opts.ForceProvider)
	if err != nil {
		slog.Warn("cache lookup failed", "story_id", storyID, "error", err)
	} else if url != "" {
		return url, nil
	}

	v := o.resolveVoice(ctx, voiceRef)

	var chain []Provider
	if opts.ForceProvider != "" {
		if p, ok := o.providers[opts.ForceProvider]; ok && v.vendorVoiceID(p.Name()) != "" {
			chain = []Provider{p}
		}
	} else {
		chain = o.chain(ctx, storyID, userID, v, opts.SkipQuotaCheck)
	}

	for _, p := range chain {
		br := o.breakers.Get(p.Name())
		if !br.Allow() {
			slog.Warn("provider circuit open, skipping", "provider", p.Name(), "story_id", storyID)
			continue
		}

		buf, err := p.GenerateAudio(ctx, SynthesisRequest{
			Text:     normalized,
			VoiceID:  v.vendorVoiceID(p.Name()),
			Settings: v.settings(),
		})
		if err != nil {
			br.RecordFailure()
			slog.Warn("synthesis failed", "provider", p.Name(), "story_id", storyID, "error", err)
			continue
		}
		br.RecordSuccess()

		audioURL, err := o.objects.Store(ctx, buf, objectName(storyID, p.Format()), contentTypeFor(p.Format()))
		if err != nil {
			return "", fmt.Errorf("store audio: %w", err)
		}

		if err := o.cache.Upsert(ctx, storyID, hash, voiceRef, p.Name(), audioURL); err != nil {
			// best effort: the caller still gets their audio
			slog.Warn("cache write failed", "story_id", storyID, "provider", p.Name(), "error", err)
		}

		return audioURL, nil
	}

	return "", ErrAllProvidersExhausted
}

// resolvedVoice is a voice reference pinned for the duration of a request.
type resolvedVoice struct {
	profile models.VoiceProfile
	custom  *models.CustomVoice
}

// vendorVoiceID returns the voice identifier for a provider, "" when this
// voice cannot be synthesized there. Custom voices exist on exactly one
// vendor.
func (v resolvedVoice) vendorVoiceID(provider string) string {
	if v.custom != nil {
		if v.custom.Provider == provider {
			return v.custom.VendorVoiceID
		}
		return ""
	}
	return v.profile.VendorVoiceID(provider)
}

func (v resolvedVoice) settings() VoiceSettings {
	if v.custom != nil {
		return VoiceSettings{}
	}
	return VoiceSettings{
		Stability:       v.profile.Stability,
		SimilarityBoost: v.profile.SimilarityBoost,
		Speed:           v.profile.Speed,
	}
}

func (o *Orchestrator) resolveVoice(ctx context.Context, ref string) resolvedVoice {
	res := o.catalog.Resolve(ctx, ref)
	switch res.Kind {
	case voice.Known:
		return resolvedVoice{profile: res.Profile}
	case voice.Custom:
		return resolvedVoice{custom: res.Custom}
	default:
		slog.Warn("unknown voice reference, using default profile", "voice", ref)
		return resolvedVoice{profile: res.Profile}
	}
}

// chain returns the providers this request may use, in tier order. The first
// tier is premium and passes through the quota gate unless the decision was
// already made; providers with no mapping for the voice are skipped.
func (o *Orchestrator) chain(ctx context.Context, storyID, userID string, v resolvedVoice, skipQuota bool) []Provider {
	var chain []Provider
	for i, name := range o.cfg.Order {
		p, ok := o.providers[name]
		if !ok {
			continue
		}
		voiceID := v.vendorVoiceID(name)
		if voiceID == "" {
			continue
		}

		if i == 0 && !skipQuota {
			allowed, err := o.premiumAllowed(ctx, storyID, userID, voiceID)
			if err != nil {
				slog.Warn("quota check failed, denying premium tier", "story_id", storyID, "error", err)
				allowed = false
			}
			if !allowed {
				slog.Info("premium tier denied by quota", "story_id", storyID, "user_id", userID)
				continue
			}
		}

		chain = append(chain, p)
	}
	return chain
}

// premiumAllowed applies the premium-tier business rules: anonymous callers
// never, premium users within their per-story voice cap, free users only on
// their single trial story.
func (o *Orchestrator) premiumAllowed(ctx context.Context, storyID, userID, vendorVoiceID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	premium, err := o.gate.IsPremiumUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if premium {
		return o.gate.CanUseVoiceForStory(ctx, storyID, vendorVoiceID)
	}
	return o.gate.CanFreeUserUseTopTier(ctx, userID, vendorVoiceID, storyID)
}

func objectName(storyID, format string) string {
	return fmt.Sprintf("stories/%s/%s.%s", storyID, uuid.New(), format)
}

func contentTypeFor(format string) string {
	if format == "wav" {
		return "audio/wav"
	}
	return "audio/mpeg"
}
