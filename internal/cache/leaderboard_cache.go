package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studypulse/arena-service/internal/models"
)

const leaderboardTTL = 30 * time.Second

// RedisLeaderboardCache keeps short-lived leaderboard snapshots in Redis for
// read-heavy surfaces. The database stays the source of truth; the short TTL
// bounds how stale a served snapshot can get if an invalidation is lost.
type RedisLeaderboardCache struct {
	client *redis.Client
}

func NewRedisLeaderboardCache(client *redis.Client) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{client: client}
}

func leaderboardKey(sessionID string) string {
	return "arena:leaderboard:" + sessionID
}

func (c *RedisLeaderboardCache) SetLeaderboard(ctx context.Context, sessionID string, entries []*models.ArenaParticipant) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	return c.client.Set(ctx, leaderboardKey(sessionID), payload, leaderboardTTL).Err()
}

// GetLeaderboard returns the cached snapshot, or (nil, nil) on a miss.
func (c *RedisLeaderboardCache) GetLeaderboard(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error) {
	payload, err := c.client.Get(ctx, leaderboardKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []*models.ArenaParticipant
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return entries, nil
}

func (c *RedisLeaderboardCache) InvalidateLeaderboard(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, leaderboardKey(sessionID)).Err()
}
