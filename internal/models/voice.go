package models

import (
	"time"

	"github.com/google/uuid"
)

// VoiceProfile maps one logical narrator voice to the identifier each vendor
// knows it by, plus prosody settings. Immutable once resolved for a request.
type VoiceProfile struct {
	Name            string  `json:"name"`
	DisplayName     string  `json:"display_name"`
	ElevenLabsID    string  `json:"elevenlabs_id,omitempty"`
	OpenAIVoice     string  `json:"openai_voice,omitempty"`
	GoogleVoice     string  `json:"google_voice,omitempty"`
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

// VendorVoiceID returns this profile's voice identifier for a provider, or
// "" when the profile has no mapping for it.
func (p VoiceProfile) VendorVoiceID(provider string) string {
	switch provider {
	case "elevenlabs":
		return p.ElevenLabsID
	case "openai":
		return p.OpenAIVoice
	case "google":
		return p.GoogleVoice
	}
	return ""
}

// CustomVoice is a user-registered voice clone stored in the database. It is
// only ever synthesized by the vendor it was created on.
type CustomVoice struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Provider      string    `json:"provider" db:"provider"`
	VendorVoiceID string    `json:"vendor_voice_id" db:"vendor_voice_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
