package tts_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablehq/storyvoice/internal/tts"
	"github.com/fablehq/storyvoice/internal/tts/breaker"
	"github.com/fablehq/storyvoice/internal/voice"
)

// fakeProvider returns "<name>:<text>" as audio, so URLs built from the
// bytes attribute every result to its producer.
type fakeProvider struct {
	name string

	mu    sync.Mutex
	calls []string
	fail  func(text string) error
}

func (f *fakeProvider) Name() string   { return f.name }
func (f *fakeProvider) Format() string { return "mp3" }

func (f *fakeProvider) GenerateAudio(_ context.Context, req tts.SynthesisRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Text)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(req.Text); err != nil {
			return nil, err
		}
	}
	return []byte(f.name + ":" + req.Text), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type cacheRow struct {
	story, hash, voice, provider, url string
}

// memCache is an append-only in-memory cache; the latest row for a key wins.
type memCache struct {
	mu          sync.Mutex
	rows        []cacheRow
	failUpserts bool
}

func (c *memCache) FindLatest(_ context.Context, storyID, hash, voiceID, provider string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest := ""
	for _, r := range c.rows {
		if r.story == storyID && r.hash == hash && r.voice == voiceID && (provider == "" || r.provider == provider) {
			latest = r.url
		}
	}
	return latest, nil
}

func (c *memCache) Upsert(_ context.Context, storyID, hash, voiceID, provider, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failUpserts {
		return errors.New("cache unavailable")
	}
	c.rows = append(c.rows, cacheRow{storyID, hash, voiceID, provider, url})
	return nil
}

func (c *memCache) FindMany(_ context.Context, storyID, voiceID, provider string, hashes []string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := map[string]string{}
	for _, h := range hashes {
		for _, r := range c.rows {
			if r.story == storyID && r.hash == h && r.voice == voiceID && r.provider == provider {
				found[h] = r.url
			}
		}
	}
	return found, nil
}

func (c *memCache) providerOf(url string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rows {
		if r.url == url {
			return r.provider
		}
	}
	return ""
}

// memObjects turns audio bytes straight into a URL, keeping them
// provider-attributable.
type memObjects struct{}

func (memObjects) Store(_ context.Context, data []byte, _, _ string) (string, error) {
	return "https://cdn.test/" + string(data), nil
}

type fakeGate struct {
	premium     bool
	voiceOK     bool
	freeTrialOK bool
}

func (g *fakeGate) IsPremiumUser(context.Context, string) (bool, error) { return g.premium, nil }
func (g *fakeGate) CanUseVoiceForStory(context.Context, string, string) (bool, error) {
	return g.voiceOK, nil
}
func (g *fakeGate) CanFreeUserUseTopTier(context.Context, string, string, string) (bool, error) {
	return g.freeTrialOK, nil
}

type staticCatalog struct{}

func (staticCatalog) Resolve(context.Context, string) voice.Resolution {
	return voice.Resolution{Kind: voice.Known, Profile: voice.Default()}
}

type testRig struct {
	orch      *tts.Orchestrator
	premiumP  *fakeProvider
	midP      *fakeProvider
	fallbackP *fakeProvider
	cache     *memCache
	gate      *fakeGate
	breakers  *breaker.Registry
}

func newRig(t *testing.T, cfg tts.Config) *testRig {
	t.Helper()

	rig := &testRig{
		premiumP:  &fakeProvider{name: tts.ProviderElevenLabs},
		midP:      &fakeProvider{name: tts.ProviderOpenAI},
		fallbackP: &fakeProvider{name: tts.ProviderGoogle},
		cache:     &memCache{},
		gate:      &fakeGate{premium: true, voiceOK: true},
	}
	rig.breakers = breaker.NewRegistry(map[string]breaker.Settings{
		tts.ProviderElevenLabs: {FailureThreshold: 3, ResetTimeout: time.Minute},
		tts.ProviderOpenAI:     {FailureThreshold: 3, ResetTimeout: time.Minute},
		tts.ProviderGoogle:     {FailureThreshold: 3, ResetTimeout: time.Minute},
	})
	rig.orch = tts.NewOrchestrator(
		[]tts.Provider{rig.premiumP, rig.midP, rig.fallbackP},
		rig.breakers,
		rig.cache,
		memObjects{},
		staticCatalog{},
		rig.gate,
		cfg,
	)
	return rig
}

func vendorFailure(provider string) error {
	return &tts.ProviderError{Provider: provider, StatusCode: 503, Code: "server_error"}
}

func TestGenerateCacheHitSkipsProviders(t *testing.T) {
	rig := newRig(t, tts.Config{})
	ctx := context.Background()

	url1, err := rig.orch.Generate(ctx, "story-1", "Once upon a time.", "luna", "user-1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, rig.premiumP.callCount())

	url2, err := rig.orch.Generate(ctx, "story-1", "Once upon a time.", "luna", "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, url1, url2)
	assert.Equal(t, 1, rig.premiumP.callCount(), "cache hit must not invoke any provider")
	assert.Zero(t, rig.midP.callCount())
	assert.Zero(t, rig.fallbackP.callCount())
}

func TestGenerateInputTooLarge(t *testing.T) {
	rig := newRig(t, tts.Config{MaxInputChars: 10})

	_, err := rig.orch.Generate(context.Background(), "story-1", strings.Repeat("a", 11), "luna", "user-1", nil)
	require.ErrorIs(t, err, tts.ErrInputTooLarge)
	assert.Zero(t, rig.premiumP.callCount(), "oversized input must not reach any provider")
	assert.Zero(t, rig.midP.callCount())
	assert.Zero(t, rig.fallbackP.callCount())
}

func TestGenerateFallbackOrdering(t *testing.T) {
	rig := newRig(t, tts.Config{})
	rig.premiumP.fail = func(string) error { return vendorFailure(tts.ProviderElevenLabs) }
	rig.midP.fail = func(string) error { return vendorFailure(tts.ProviderOpenAI) }

	url, err := rig.orch.Generate(context.Background(), "story-1", "A windy night.", "luna", "user-1", nil)
	require.NoError(t, err)

	assert.Contains(t, url, tts.ProviderGoogle+":", "audio must come from the tier that succeeded")
	assert.Equal(t, tts.ProviderGoogle, rig.cache.providerOf(url), "cache row must be attributed to the succeeding tier")

	_, fails := rig.breakers.Get(tts.ProviderElevenLabs).Snapshot()
	assert.Equal(t, 1, fails)
	_, fails = rig.breakers.Get(tts.ProviderOpenAI).Snapshot()
	assert.Equal(t, 1, fails)
}

func TestGenerateAllProvidersExhausted(t *testing.T) {
	rig := newRig(t, tts.Config{})
	for _, p := range []*fakeProvider{rig.premiumP, rig.midP, rig.fallbackP} {
		name := p.name
		p.fail = func(string) error { return vendorFailure(name) }
	}

	_, err := rig.orch.Generate(context.Background(), "story-1", "A windy night.", "luna", "user-1", nil)
	require.ErrorIs(t, err, tts.ErrAllProvidersExhausted)

	for _, name := range tts.TierOrder {
		_, fails := rig.breakers.Get(name).Snapshot()
		assert.Equal(t, 1, fails, "breaker for %s must record the failure", name)
	}
}

func TestGenerateSkipsOpenCircuit(t *testing.T) {
	rig := newRig(t, tts.Config{})

	br := rig.breakers.Get(tts.ProviderElevenLabs)
	for i := 0; i < 3; i++ {
		br.RecordFailure()
	}

	url, err := rig.orch.Generate(context.Background(), "story-1", "A quiet dawn.", "luna", "user-1", nil)
	require.NoError(t, err)
	assert.Contains(t, url, tts.ProviderOpenAI+":")
	assert.Zero(t, rig.premiumP.callCount(), "open circuit must be skipped without a call")
}

func TestGenerateAnonymousNeverUsesPremium(t *testing.T) {
	rig := newRig(t, tts.Config{})

	url, err := rig.orch.Generate(context.Background(), "story-1", "A quiet dawn.", "luna", "", nil)
	require.NoError(t, err)
	assert.Contains(t, url, tts.ProviderOpenAI+":")
	assert.Zero(t, rig.premiumP.callCount())
}

func TestGenerateCacheWriteFailureSwallowed(t *testing.T) {
	rig := newRig(t, tts.Config{})
	rig.cache.failUpserts = true

	url, err := rig.orch.Generate(context.Background(), "story-1", "A quiet dawn.", "luna", "user-1", nil)
	require.NoError(t, err, "cache write failures must never surface to the caller")
	assert.NotEmpty(t, url)
}
