package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fablehq/storyvoice/internal/auth"
	"github.com/fablehq/storyvoice/internal/queue"
	"github.com/fablehq/storyvoice/internal/tts"
)

type NarrationHandler struct {
	orch  *tts.Orchestrator
	queue *queue.Client
}

func NewNarrationHandler(orch *tts.Orchestrator, qc *queue.Client) *NarrationHandler {
	return &NarrationHandler{orch: orch, queue: qc}
}

type narrationRequest struct {
	StoryID string `json:"story_id"`
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (r narrationRequest) validate() string {
	if r.StoryID == "" {
		return "story_id required"
	}
	if r.Text == "" {
		return "text required"
	}
	return ""
}

// Paragraph synthesizes a single paragraph and returns its audio URL.
func (h *NarrationHandler) Paragraph(w http.ResponseWriter, r *http.Request) {
	var req narrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	url, err := h.orch.Generate(r.Context(), req.StoryID, req.Text, req.VoiceID, auth.UserID(r.Context()), nil)
	if err != nil {
		writeNarrationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"story_id":  req.StoryID,
		"audio_url": url,
	})
}

// Story synthesizes a whole story synchronously and returns per-paragraph
// results. Paragraphs that failed on every provider carry a null audio_url.
func (h *NarrationHandler) Story(w http.ResponseWriter, r *http.Request) {
	var req narrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	resp, err := h.orch.GenerateBatch(r.Context(), req.StoryID, req.Text, req.VoiceID, auth.UserID(r.Context()))
	if err != nil {
		writeNarrationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// StoryAsync enqueues whole-story synthesis and returns immediately.
func (h *NarrationHandler) StoryAsync(w http.ResponseWriter, r *http.Request) {
	var req narrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	err := h.queue.EnqueueNarrateStory(queue.NarrateStoryPayload{
		StoryID:  req.StoryID,
		Text:     req.Text,
		VoiceRef: req.VoiceID,
		UserID:   auth.UserID(r.Context()),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue narration"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"story_id": req.StoryID,
		"status":   "queued",
	})
}

func writeNarrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tts.ErrInputTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	case errors.Is(err, tts.ErrAllProvidersExhausted):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
