package tts

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fablehq/storyvoice/internal/tts/breaker"
	"github.com/fablehq/storyvoice/internal/tts/text"
)

// BatchResult is the outcome for one input paragraph. AudioURL is nil only
// when every reachable provider failed for that paragraph.
type BatchResult struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	AudioURL *string `json:"audioUrl"`
}

// BatchResponse reports a whole-story synthesis. It is always returned, even
// when some or all paragraphs failed; callers decide whether a partially
// narrated story is acceptable.
type BatchResponse struct {
	Results           []BatchResult `json:"results"`
	TotalParagraphs   int           `json:"totalParagraphs"`
	WasTruncated      bool          `json:"wasTruncated"`
	UsedProvider      string        `json:"usedProvider,omitempty"`
	PreferredProvider string        `json:"preferredProvider,omitempty"`
	ProviderStatus    string        `json:"providerStatus,omitempty"`
}

// GenerateBatch narrates a whole story with a single pinned provider so the
// result sounds like one narrator even when fallback fires mid-story. The
// provider is chosen once, before any cache lookup; when a generation pass
// fails, the entire remaining set moves to the next tier and the cache split
// is re-derived for that provider.
func (o *Orchestrator) GenerateBatch(ctx context.Context, storyID, fullText, voiceRef, userID string) (*BatchResponse, error) {
	resp := &BatchResponse{Results: []BatchResult{}}

	paras := text.SplitParagraphs(fullText, o.cfg.ParagraphWords)
	resp.TotalParagraphs = len(paras)
	if len(paras) == 0 {
		return resp, nil
	}
	if len(paras) > o.cfg.MaxParagraphs {
		resp.WasTruncated = true
		paras = paras[:o.cfg.MaxParagraphs]
		slog.Warn("story truncated for narration",
			"story_id", storyID,
			"total_paragraphs", resp.TotalParagraphs,
			"cap", o.cfg.MaxParagraphs,
		)
	}

	// duplicate paragraphs synthesize once and share the result
	textByHash := make(map[string]string)
	hashes := make([]string, 0, len(paras))
	for _, p := range paras {
		if _, seen := textByHash[p.Hash]; !seen {
			textByHash[p.Hash] = p.Text
			hashes = append(hashes, p.Hash)
		}
	}

	v := o.resolveVoice(ctx, voiceRef)

	// the quota gate is evaluated once for the whole story
	chain := o.chain(ctx, storyID, userID, v, false)

	urls := make(map[string]string)
	if len(chain) > 0 {
		resp.PreferredProvider = chain[0].Name()
		urls, resp.UsedProvider = o.runBatchChain(ctx, chain, storyID, voiceRef, hashes, textByHash)
	} else {
		slog.Warn("no providers reachable for batch", "story_id", storyID, "voice", voiceRef)
	}

	if resp.PreferredProvider == resp.UsedProvider {
		resp.PreferredProvider = ""
	}
	if o.breakers.AnyOpen() {
		resp.ProviderStatus = "degraded"
	}

	for _, p := range paras {
		r := BatchResult{Index: p.Index, Text: p.Text}
		if u, ok := urls[p.Hash]; ok {
			url := u
			r.AudioURL = &url
		}
		resp.Results = append(resp.Results, r)
	}

	return resp, nil
}

// runBatchChain walks the tier chain carrying {cached, remaining} per
// provider. A pass that fails any paragraph discards its bookkeeping and the
// whole unique-hash set is retried on the next tier; the audio it did
// produce stays cached under that provider for later reuse.
func (o *Orchestrator) runBatchChain(ctx context.Context, chain []Provider, storyID, voiceRef string, hashes []string, textByHash map[string]string) (map[string]string, string) {
	urls := make(map[string]string)
	used := ""

	for _, p := range chain {
		if state, _ := o.breakers.Get(p.Name()).Snapshot(); state == breaker.StateOpen {
			slog.Warn("skipping provider with open circuit", "provider", p.Name(), "story_id", storyID)
			continue
		}
		used = p.Name()

		// cache rows from other providers are ignored on purpose: mixing
		// them in would mix narrators within one story
		cached, err := o.cache.FindMany(ctx, storyID, voiceRef, p.Name(), hashes)
		if err != nil {
			slog.Warn("batch cache lookup failed", "provider", p.Name(), "error", err)
			cached = map[string]string{}
		}

		passURLs := make(map[string]string, len(hashes))
		var missing []string
		for _, h := range hashes {
			if u, ok := cached[h]; ok {
				passURLs[h] = u
			} else {
				missing = append(missing, h)
			}
		}

		if len(missing) == 0 {
			return passURLs, used
		}

		generated, complete := o.generatePass(ctx, p, storyID, voiceRef, missing, textByHash)
		for h, u := range generated {
			passURLs[h] = u
		}
		urls = passURLs

		if complete {
			return urls, used
		}
		slog.Warn("batch pass incomplete, falling back to next tier",
			"provider", p.Name(),
			"story_id", storyID,
			"missing", len(missing)-len(generated),
		)
	}

	// chain exhausted: return whatever the last pass produced
	return urls, used
}

// generatePass synthesizes the uncached hashes on one provider with bounded
// concurrency. Each worker goes through the single-paragraph path with the
// provider pinned and the quota decision already made, so every success is
// uploaded and cached before the pass resolves.
func (o *Orchestrator) generatePass(ctx context.Context, p Provider, storyID, voiceRef string, hashes []string, textByHash map[string]string) (map[string]string, bool) {
	opts := &GenerateOptions{ForceProvider: p.Name(), SkipQuotaCheck: true}

	sem := make(chan struct{}, o.cfg.BatchConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	urls := make(map[string]string, len(hashes))
	complete := true

	for _, h := range hashes {
		wg.Add(1)
		sem <- struct{}{}
		go func(hash string) {
			defer wg.Done()
			defer func() { <-sem }()

			url, err := o.Generate(ctx, storyID, textByHash[hash], voiceRef, "", opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				complete = false
				slog.Warn("paragraph synthesis failed",
					"provider", p.Name(),
					"story_id", storyID,
					"hash", hash,
					"error", err,
				)
				return
			}
			urls[hash] = url
		}(h)
	}
	wg.Wait()

	return urls, complete
}
