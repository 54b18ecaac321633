package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fablehq/storyvoice/internal/models"
)

// ResolutionKind tags the result of resolving a voice reference.
type ResolutionKind int

const (
	// Known is a catalog voice with per-vendor mappings.
	Known ResolutionKind = iota
	// Custom is a user-registered voice clone from the database.
	Custom
	// Unknown means the reference matched nothing; callers fall back to
	// the default profile.
	Unknown
)

// Resolution is the tagged union returned by Resolve.
type Resolution struct {
	Kind    ResolutionKind
	Profile models.VoiceProfile // set for Known (and as fallback for Unknown)
	Custom  *models.CustomVoice // set for Custom
}

// Resolver is the catalog contract the orchestrator consumes.
type Resolver interface {
	Resolve(ctx context.Context, ref string) Resolution
}

// DefaultVoice is used when a reference resolves to nothing.
const DefaultVoice = "luna"

// catalogProfiles are the built-in narrator voices. Vendor voice ids are the
// public stock voices of each platform.
var catalogProfiles = map[string]models.VoiceProfile{
	"luna": {
		Name:            "luna",
		DisplayName:     "Luna",
		ElevenLabsID:    "EXAVITQu4vr4xnSDxMaL",
		OpenAIVoice:     "nova",
		GoogleVoice:     "en-US-Neural2-F",
		Stability:       0.5,
		SimilarityBoost: 0.75,
	},
	"atlas": {
		Name:            "atlas",
		DisplayName:     "Atlas",
		ElevenLabsID:    "TxGEqnHWrfWFTfGW9XjX",
		OpenAIVoice:     "onyx",
		GoogleVoice:     "en-US-Neural2-D",
		Stability:       0.6,
		SimilarityBoost: 0.7,
	},
	"pip": {
		Name:            "pip",
		DisplayName:     "Pip",
		ElevenLabsID:    "jsCqWAovK2LkecY7zXl4",
		OpenAIVoice:     "shimmer",
		GoogleVoice:     "en-GB-Neural2-A",
		Stability:       0.4,
		SimilarityBoost: 0.8,
		Speed:           1.05,
	},
}

// Catalog resolves voice references against the built-in profiles first,
// then against user-registered custom voices in the database.
type Catalog struct {
	db *pgxpool.Pool
}

func NewCatalog(db *pgxpool.Pool) *Catalog {
	return &Catalog{db: db}
}

// Default returns the fallback narrator profile.
func Default() models.VoiceProfile {
	return catalogProfiles[DefaultVoice]
}

// Profiles lists the built-in catalog voices.
func Profiles() []models.VoiceProfile {
	out := make([]models.VoiceProfile, 0, len(catalogProfiles))
	for _, name := range []string{"luna", "atlas", "pip"} {
		out = append(out, catalogProfiles[name])
	}
	return out
}

// Resolve maps a voice reference to a catalog profile, a custom DB voice, or
// Unknown. A reference that parses as a UUID is looked up as a custom voice;
// anything else is matched against the catalog by name.
func (c *Catalog) Resolve(ctx context.Context, ref string) Resolution {
	if profile, ok := catalogProfiles[ref]; ok {
		return Resolution{Kind: Known, Profile: profile}
	}

	if id, err := uuid.Parse(ref); err == nil && c.db != nil {
		if cv, err := c.findCustom(ctx, id); err == nil {
			return Resolution{Kind: Custom, Custom: cv}
		}
	}

	return Resolution{Kind: Unknown, Profile: Default()}
}

// ListCustom returns a user's registered custom voices.
func (c *Catalog) ListCustom(ctx context.Context, userID uuid.UUID) ([]models.CustomVoice, error) {
	rows, err := c.db.Query(ctx,
		`SELECT id, user_id, name, provider, vendor_voice_id, created_at
		 FROM custom_voices WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list custom voices: %w", err)
	}
	defer rows.Close()

	var voices []models.CustomVoice
	for rows.Next() {
		var v models.CustomVoice
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Provider, &v.VendorVoiceID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan custom voice: %w", err)
		}
		voices = append(voices, v)
	}
	return voices, rows.Err()
}

func (c *Catalog) findCustom(ctx context.Context, id uuid.UUID) (*models.CustomVoice, error) {
	var v models.CustomVoice
	err := c.db.QueryRow(ctx,
		`SELECT id, user_id, name, provider, vendor_voice_id, created_at
		 FROM custom_voices WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.UserID, &v.Name, &v.Provider, &v.VendorVoiceID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("custom voice %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find custom voice: %w", err)
	}
	return &v, nil
}
