package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyTTL = time.Hour

// IdempotencyStore maps a client retry key to the message it produced.
// Key format: idem:<scope>:<key>
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Reserve claims key for id before the message is written (expires after
// idempotencyTTL). A lost race returns the winner's id.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope, key, id string) (string, bool, error) {
	k := idempotencyKey(scope, key)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, k, id, idempotencyTTL).Result()
		if err != nil {
			return "", false, fmt.Errorf("idempotency reserve: %w", err)
		}
		if ok {
			return id, true, nil
		}

		holder, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// Expired or released between the two calls.
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("idempotency lookup: %w", err)
		}
		return holder, false, nil
	}
	return "", false, fmt.Errorf("idempotency reserve: key %q keeps changing", k)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release deletes the reservation when id still owns it.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key, id string) error {
	if err := releaseScript.Run(ctx, s.client, []string{idempotencyKey(scope, key)}, id).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}
