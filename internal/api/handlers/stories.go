package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fablehq/storyvoice/pkg/storytext"
)

type StoriesHandler struct{}

func NewStoriesHandler() *StoriesHandler {
	return &StoriesHandler{}
}

// Import extracts narration text from an uploaded story file and assigns it
// a story ID for subsequent narration calls.
func (h *StoriesHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = filepath.Ext(header.Filename)
	}

	story, err := storytext.Extract(file, header.Size, fileType)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"story_id": uuid.New().String(),
		"text":     story.Content,
		"pages":    story.Pages,
	})
}
