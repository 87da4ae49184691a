package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kwadrop/db"
	"kwadrop/model"

	"github.com/go-redis/redis/v8"
)

const playlistTTL = 30 * time.Second

// PlaylistCache keeps the assembled display-order playlist per room as a
// short-lived JSON snapshot. Every queue mutation invalidates it, so the TTL
// only bounds staleness across process restarts.
type PlaylistCache struct {
	client *redis.Client
}

// NewPlaylistCache creates a playlist cache on the global Redis client.
func NewPlaylistCache() *PlaylistCache {
	return &PlaylistCache{client: db.RedisClient}
}

func playlistKey(roomID int64) string {
	return fmt.Sprintf("room:%d:playlist", roomID)
}

// Get returns the cached playlist, or (nil, nil) on a miss.
func (c *PlaylistCache) Get(ctx context.Context, roomID int64) ([]*model.Song, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	payload, err := c.client.Get(ctx, playlistKey(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist cache: %w", err)
	}
	var songs []*model.Song
	if err := json.Unmarshal([]byte(payload), &songs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached playlist: %w", err)
	}
	return songs, nil
}

// Set stores the playlist snapshot.
func (c *PlaylistCache) Set(ctx context.Context, roomID int64, songs []*model.Song) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	payload, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("failed to marshal playlist: %w", err)
	}
	if err := c.client.Set(ctx, playlistKey(roomID), payload, playlistTTL).Err(); err != nil {
		return fmt.Errorf("failed to write playlist cache: %w", err)
	}
	return nil
}

// Invalidate drops the room's cached playlist.
func (c *PlaylistCache) Invalidate(ctx context.Context, roomID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := c.client.Del(ctx, playlistKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate playlist cache: %w", err)
	}
	return nil
}
