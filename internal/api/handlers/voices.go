package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fablehq/storyvoice/internal/auth"
	"github.com/fablehq/storyvoice/internal/models"
	"github.com/fablehq/storyvoice/internal/voice"
)

type VoicesHandler struct {
	catalog *voice.Catalog
}

func NewVoicesHandler(catalog *voice.Catalog) *VoicesHandler {
	return &VoicesHandler{catalog: catalog}
}

// List returns the stock voice catalog, plus the caller's custom voices when
// the request is authenticated.
func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	custom := []models.CustomVoice{}
	if uid, err := uuid.Parse(auth.UserID(r.Context())); err == nil {
		voices, err := h.catalog.ListCustom(r.Context(), uid)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list voices"})
			return
		}
		custom = voices
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"catalog": voice.Profiles(),
		"custom":  custom,
		"default": voice.DefaultVoice,
	})
}
