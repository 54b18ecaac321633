package models

import (
	"time"

	"github.com/google/uuid"
)

// AudioCacheEntry records one successfully synthesized paragraph. One row
// exists per (story, text hash, voice, provider); regeneration replaces it
// and lookups take the most recent write.
type AudioCacheEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	StoryID   string    `json:"story_id" db:"story_id"`
	TextHash  string    `json:"text_hash" db:"text_hash"`
	VoiceID   string    `json:"voice_id" db:"voice_id"`
	Provider  string    `json:"provider" db:"provider"`
	AudioURL  string    `json:"audio_url" db:"audio_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
