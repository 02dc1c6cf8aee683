package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	matchesKey    = "matching:ranking:v1"
	generationKey = "matching:ranking:gen"
)

// MatchCache keeps the latest specialist ranking as a JSON blob next to a
// generation counter that Invalidate increments.
type MatchCache struct {
	client *redis.Client
}

func NewMatchCache(client *redis.Client) *MatchCache {
	return &MatchCache{client: client}
}

func (c *MatchCache) Get(ctx context.Context) ([]ports.Match, bool, error) {
	raw, err := c.client.Get(ctx, matchesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("match cache get: %w", err)
	}
	var matches []ports.Match
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, false, fmt.Errorf("match cache decode: %w", err)
	}
	return matches, true, nil
}

// Generation returns the current invalidation counter (0 before the first
// invalidation).
func (c *MatchCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("match cache generation: %w", err)
	}
	return gen, nil
}

var setIfGenerationScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1]) or "0"
if cur ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Set stores matches unless an Invalidate happened after gen was read.
func (c *MatchCache) Set(ctx context.Context, gen int64, matches []ports.Match, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(matches)
	if err != nil {
		return false, fmt.Errorf("match cache encode: %w", err)
	}
	stored, err := setIfGenerationScript.Run(ctx, c.client,
		[]string{generationKey, matchesKey},
		strconv.FormatInt(gen, 10), raw, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("match cache set: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the cached ranking and bumps the generation.
func (c *MatchCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, matchesKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("match cache invalidate: %w", err)
	}
	return nil
}
