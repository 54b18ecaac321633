// Package audiocache persists the content-addressable paragraph audio cache.
// The natural key is (story_id, text_hash, voice_id, provider); lookups are
// most-recent-wins and writes are idempotent upserts, so concurrent writers
// for the same key cannot corrupt anything.
package audiocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the cache contract the orchestrator consumes.
type Store interface {
	// FindLatest returns the newest cached URL for the key, "" on miss.
	// An empty provider matches any provider.
	FindLatest(ctx context.Context, storyID, textHash, voiceID, provider string) (string, error)
	// Upsert records a synthesized paragraph under the natural key.
	Upsert(ctx context.Context, storyID, textHash, voiceID, provider, audioURL string) error
	// FindMany returns hash->URL for every requested hash cached under
	// exactly the given provider.
	FindMany(ctx context.Context, storyID, voiceID, provider string, hashes []string) (map[string]string, error)
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindLatest(ctx context.Context, storyID, textHash, voiceID, provider string) (string, error) {
	query := `SELECT audio_url FROM tts_audio_cache
	          WHERE story_id = $1 AND text_hash = $2 AND voice_id = $3`
	args := []any{storyID, textHash, voiceID}

	if provider != "" {
		query += ` AND provider = $4`
		args = append(args, provider)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var url string
	err := s.db.QueryRow(ctx, query, args...).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find cached audio: %w", err)
	}
	return url, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, storyID, textHash, voiceID, provider, audioURL string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tts_audio_cache (story_id, text_hash, voice_id, provider, audio_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (story_id, text_hash, voice_id, provider)
		 DO UPDATE SET audio_url = $5, created_at = now()`,
		storyID, textHash, voiceID, provider, audioURL,
	)
	if err != nil {
		return fmt.Errorf("upsert cached audio: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMany(ctx context.Context, storyID, voiceID, provider string, hashes []string) (map[string]string, error) {
	if len(hashes) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (text_hash) text_hash, audio_url
		 FROM tts_audio_cache
		 WHERE story_id = $1 AND voice_id = $2 AND provider = $3 AND text_hash = ANY($4)
		 ORDER BY text_hash, created_at DESC`,
		storyID, voiceID, provider, hashes,
	)
	if err != nil {
		return nil, fmt.Errorf("find cached audio batch: %w", err)
	}
	defer rows.Close()

	found := make(map[string]string, len(hashes))
	for rows.Next() {
		var hash, url string
		if err := rows.Scan(&hash, &url); err != nil {
			return nil, fmt.Errorf("scan cached audio: %w", err)
		}
		found[hash] = url
	}
	return found, rows.Err()
}
