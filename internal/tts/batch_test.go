package tts_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablehq/storyvoice/internal/tts"
	"github.com/fablehq/storyvoice/internal/tts/text"
)

// sentence builds a ~20-word sentence around a marker word, long enough that
// the paragraph splitter keeps it as its own paragraph.
func sentence(marker string) string {
	return "The " + marker + " wandered softly through the silver forest while the sleepy moon watched over every small creature resting beneath the old pine trees."
}

func TestGenerateBatchEmptyInput(t *testing.T) {
	rig := newRig(t, tts.Config{})

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", "   \n\t ", "luna", "user-1")
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalParagraphs)
	assert.Zero(t, rig.premiumP.callCount(), "empty input must trigger zero provider calls")
	assert.Zero(t, rig.midP.callCount())
	assert.Zero(t, rig.fallbackP.callCount())
}

func TestGenerateBatchDuplicateParagraphsFreeUser(t *testing.T) {
	rig := newRig(t, tts.Config{})
	rig.gate.premium = false
	rig.gate.freeTrialOK = false

	cat := sentence("cat")
	owl := sentence("owl")
	full := cat + " " + owl + " " + cat

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", full, "luna", "free-user")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	require.NotNil(t, resp.Results[0].AudioURL)
	require.NotNil(t, resp.Results[1].AudioURL)
	require.NotNil(t, resp.Results[2].AudioURL)

	assert.Equal(t, *resp.Results[0].AudioURL, *resp.Results[2].AudioURL,
		"identical paragraphs must share one URL")
	assert.NotEqual(t, *resp.Results[0].AudioURL, *resp.Results[1].AudioURL)

	assert.Zero(t, rig.premiumP.callCount(), "top tier must never be invoked for a denied free user")
	assert.Equal(t, 2, rig.midP.callCount(), "duplicates synthesize once")
	assert.Equal(t, tts.ProviderOpenAI, resp.UsedProvider)
}

func TestGenerateBatchVoiceConsistencyOnMidStoryFailure(t *testing.T) {
	rig := newRig(t, tts.Config{})

	// premium succeeds for the first paragraph, then starts failing
	rig.premiumP.fail = func(txt string) error {
		if strings.Contains(txt, "owl") {
			return vendorFailure(tts.ProviderElevenLabs)
		}
		return nil
	}

	full := sentence("cat") + " " + sentence("owl") + " " + sentence("fox")

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", full, "luna", "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, tts.ProviderOpenAI, resp.UsedProvider)
	assert.Equal(t, tts.ProviderElevenLabs, resp.PreferredProvider,
		"preferred provider is reported when it differs from the producer")

	for _, r := range resp.Results {
		require.NotNil(t, r.AudioURL, "paragraph %d", r.Index)
		assert.Contains(t, *r.AudioURL, tts.ProviderOpenAI+":",
			"every URL must come from the single pinned provider")
	}

	assert.Equal(t, 3, rig.midP.callCount(),
		"the entire remaining set is retried on the next tier")
}

func TestGenerateBatchTruncation(t *testing.T) {
	rig := newRig(t, tts.Config{MaxParagraphs: 3})

	markers := []string{"cat", "owl", "fox", "bee", "elk", "hen"}
	var sb strings.Builder
	for _, m := range markers {
		sb.WriteString(sentence(m))
		sb.WriteString(" ")
	}

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", sb.String(), "luna", "user-1")
	require.NoError(t, err)

	assert.True(t, resp.WasTruncated)
	assert.Equal(t, 6, resp.TotalParagraphs, "the untruncated count is still reported")
	assert.Len(t, resp.Results, 3)
}

func TestGenerateBatchProviderPinnedBeforeCache(t *testing.T) {
	rig := newRig(t, tts.Config{})
	ctx := context.Background()

	full := sentence("cat") + " " + sentence("owl")

	// the fallback tier already has both paragraphs cached, but the pinned
	// provider is premium, so those rows must be ignored
	for _, p := range text.SplitParagraphs(full, 30) {
		require.NoError(t, rig.cache.Upsert(ctx, "story-1", p.Hash, "luna", tts.ProviderGoogle, "https://cdn.test/stale-"+p.Hash))
	}

	resp, err := rig.orch.GenerateBatch(ctx, "story-1", full, "luna", "user-1")
	require.NoError(t, err)

	assert.Equal(t, tts.ProviderElevenLabs, resp.UsedProvider)
	assert.Empty(t, resp.PreferredProvider)
	assert.Equal(t, 2, rig.premiumP.callCount())
	for _, r := range resp.Results {
		require.NotNil(t, r.AudioURL)
		assert.Contains(t, *r.AudioURL, tts.ProviderElevenLabs+":")
	}
}

func TestGenerateBatchFullyCachedNoCalls(t *testing.T) {
	rig := newRig(t, tts.Config{})
	ctx := context.Background()

	full := sentence("cat") + " " + sentence("owl")
	for _, p := range text.SplitParagraphs(full, 30) {
		require.NoError(t, rig.cache.Upsert(ctx, "story-1", p.Hash, "luna", tts.ProviderElevenLabs, "https://cdn.test/hit-"+p.Hash))
	}

	resp, err := rig.orch.GenerateBatch(ctx, "story-1", full, "luna", "user-1")
	require.NoError(t, err)

	assert.Zero(t, rig.premiumP.callCount())
	assert.Zero(t, rig.midP.callCount())
	for _, r := range resp.Results {
		require.NotNil(t, r.AudioURL)
		assert.Contains(t, *r.AudioURL, "hit-")
	}
}

func TestGenerateBatchPartialFailureReturnsNulls(t *testing.T) {
	rig := newRig(t, tts.Config{})

	fail := func(txt string) error {
		if strings.Contains(txt, "owl") {
			return vendorFailure("any")
		}
		return nil
	}
	rig.premiumP.fail = fail
	rig.midP.fail = fail
	rig.fallbackP.fail = fail

	full := sentence("cat") + " " + sentence("owl")

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", full, "luna", "user-1")
	require.NoError(t, err, "batch never throws for per-paragraph failure")
	require.Len(t, resp.Results, 2)

	assert.NotNil(t, resp.Results[0].AudioURL)
	assert.Nil(t, resp.Results[1].AudioURL, "a paragraph is null only when every tier failed it")
	assert.Equal(t, tts.ProviderGoogle, resp.UsedProvider)
}

func TestGenerateBatchDegradedStatus(t *testing.T) {
	rig := newRig(t, tts.Config{})

	br := rig.breakers.Get(tts.ProviderGoogle)
	for i := 0; i < 3; i++ {
		br.RecordFailure()
	}

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", sentence("cat"), "luna", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "degraded", resp.ProviderStatus,
		"an open breaker anywhere marks the response degraded even when the batch succeeded")
	require.NotNil(t, resp.Results[0].AudioURL)
}

func TestGenerateBatchResultsAreIndexOrdered(t *testing.T) {
	rig := newRig(t, tts.Config{})

	full := sentence("cat") + " " + sentence("owl") + " " + sentence("fox") + " " + sentence("bee")

	resp, err := rig.orch.GenerateBatch(context.Background(), "story-1", full, "luna", "user-1")
	require.NoError(t, err)

	for i, r := range resp.Results {
		assert.Equal(t, i, r.Index)
	}
}
