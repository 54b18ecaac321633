// Package quota decides whether a user or story may route to the premium
// synthesis tier right now. A denial is a routing decision, not an error:
// the orchestrator simply starts the fallback chain one tier lower.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Gate is the policy contract the orchestrator consumes.
type Gate interface {
	// IsPremiumUser reports whether the user holds an active premium
	// membership.
	IsPremiumUser(ctx context.Context, userID string) (bool, error)
	// CanUseVoiceForStory enforces the per-story distinct premium voice
	// cap for premium users. Asking about a voice the story already uses
	// always succeeds.
	CanUseVoiceForStory(ctx context.Context, storyID, vendorVoiceID string) (bool, error)
	// CanFreeUserUseTopTier grants a free user their single premium trial
	// story. Repeat calls for the trial story keep succeeding; any other
	// story is denied.
	CanFreeUserUseTopTier(ctx context.Context, userID, vendorVoiceID, storyID string) (bool, error)
}

// Limits configure the premium-tier policy.
type Limits struct {
	PremiumVoicesPerStory int           // distinct premium voices one story may use
	TrialTTL              time.Duration // retention of the free-trial marker
}

func DefaultLimits() Limits {
	return Limits{
		PremiumVoicesPerStory: 3,
		TrialTTL:              90 * 24 * time.Hour,
	}
}

// RedisGate keeps usage counters in redis and membership in postgres.
type RedisGate struct {
	db     *pgxpool.Pool
	rdb    *redis.Client
	limits Limits
}

func NewRedisGate(db *pgxpool.Pool, rdb *redis.Client, limits Limits) *RedisGate {
	if limits.PremiumVoicesPerStory <= 0 {
		limits.PremiumVoicesPerStory = DefaultLimits().PremiumVoicesPerStory
	}
	if limits.TrialTTL <= 0 {
		limits.TrialTTL = DefaultLimits().TrialTTL
	}
	return &RedisGate{db: db, rdb: rdb, limits: limits}
}

func (g *RedisGate) IsPremiumUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	var active bool
	err := g.db.QueryRow(ctx,
		`SELECT expires_at IS NULL OR expires_at > now()
		 FROM premium_memberships WHERE user_id = $1`,
		userID,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check premium membership: %w", err)
	}
	return active, nil
}

func (g *RedisGate) CanUseVoiceForStory(ctx context.Context, storyID, vendorVoiceID string) (bool, error) {
	key := storyVoicesKey(storyID)

	member, err := g.rdb.SIsMember(ctx, key, vendorVoiceID).Result()
	if err != nil {
		return false, fmt.Errorf("check story voice set: %w", err)
	}
	if member {
		return true, nil
	}

	used, err := g.rdb.SCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count story voices: %w", err)
	}
	if used >= int64(g.limits.PremiumVoicesPerStory) {
		return false, nil
	}

	if err := g.rdb.SAdd(ctx, key, vendorVoiceID).Err(); err != nil {
		return false, fmt.Errorf("record story voice: %w", err)
	}
	return true, nil
}

func (g *RedisGate) CanFreeUserUseTopTier(ctx context.Context, userID, vendorVoiceID, storyID string) (bool, error) {
	if userID == "" {
		// anonymous callers never reach the premium tier
		return false, nil
	}

	key := trialStoryKey(userID)

	claimed, err := g.rdb.SetNX(ctx, key, storyID, g.limits.TrialTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim trial story: %w", err)
	}
	if claimed {
		return true, nil
	}

	trialStory, err := g.rdb.Get(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("read trial story: %w", err)
	}
	return trialStory == storyID, nil
}

func storyVoicesKey(storyID string) string {
	return "quota:story_voices:" + storyID
}

func trialStoryKey(userID string) string {
	return "quota:trial_story:" + userID
}
