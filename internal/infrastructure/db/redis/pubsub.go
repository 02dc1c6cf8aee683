package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const sessionChannelPrefix = "chat:session:"

// SessionNotifier fans out message notifications over Redis pub/sub so every
// API instance can refresh its websocket subscribers.
type SessionNotifier struct {
	client *redis.Client
}

func NewSessionNotifier(client *redis.Client) *SessionNotifier {
	return &SessionNotifier{client: client}
}

// Publish announces that sessionID advanced to seq.
func (n *SessionNotifier) Publish(ctx context.Context, sessionID string, seq int64) error {
	return n.client.Publish(ctx, SessionChannel(sessionID), strconv.FormatInt(seq, 10)).Err()
}

// Subscribe returns a channel that receives a value per notification on
// sessionID. The channel closes when ctx is cancelled.
func (n *SessionNotifier) Subscribe(ctx context.Context, sessionID string) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, SessionChannel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				// Bursts collapse into one pending signal.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// SessionChannel names the pub/sub channel of a session.
func SessionChannel(sessionID string) string {
	return sessionChannelPrefix + sessionID
}
