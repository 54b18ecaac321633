package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fablehq/storyvoice/internal/queue"
	"github.com/fablehq/storyvoice/internal/tts"
)

// NarrationWorker runs whole-story synthesis off the request path.
type NarrationWorker struct {
	orch *tts.Orchestrator
}

func NewNarrationWorker(orch *tts.Orchestrator) *NarrationWorker {
	return &NarrationWorker{orch: orch}
}

func (w *NarrationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.NarrateStoryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	slog.Info("narrating story", "story_id", payload.StoryID, "voice", payload.VoiceRef)

	resp, err := w.orch.GenerateBatch(ctx, payload.StoryID, payload.Text, payload.VoiceRef, payload.UserID)
	if err != nil {
		return fmt.Errorf("narrate story %s: %w", payload.StoryID, err)
	}

	missing := 0
	for _, r := range resp.Results {
		if r.AudioURL == nil {
			missing++
		}
	}
	if missing > 0 {
		// fail the task so asynq retries once providers recover; finished
		// paragraphs are cached and will be skipped next run
		return fmt.Errorf("story %s: %d of %d paragraphs failed (provider %s)",
			payload.StoryID, missing, len(resp.Results), resp.UsedProvider)
	}

	slog.Info("story narrated",
		"story_id", payload.StoryID,
		"paragraphs", len(resp.Results),
		"provider", resp.UsedProvider,
		"truncated", resp.WasTruncated,
	)
	return nil
}
