package queue

const (
	TypeNarrateStory = "narration:story"
)

// NarrateStoryPayload asks the worker to narrate a whole story out of band.
// Results land in the audio cache; clients poll the batch endpoint, which
// then resolves entirely from cache.
type NarrateStoryPayload struct {
	StoryID  string `json:"story_id"`
	Text     string `json:"text"`
	VoiceRef string `json:"voice_ref"`
	UserID   string `json:"user_id,omitempty"`
}
