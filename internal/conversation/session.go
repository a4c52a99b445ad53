package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitcoach-platform/fitcoach/internal/config"
)

// SessionMessage is one turn of the short-term context window kept in Redis.
type SessionMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionWindow keeps the last N turns per (user, session) with a sliding
// TTL. It is a cache over the durable Store, never the source of truth.
type SessionWindow struct {
	client *redis.Client
	max    int
	ttl    time.Duration
}

func NewSessionWindow(client *redis.Client, cfg config.SessionConfig) *SessionWindow {
	return &SessionWindow{
		client: client,
		max:    cfg.MaxMessages,
		ttl:    cfg.TTL,
	}
}

func sessionKey(userID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", userID, sessionID)
}

// Push appends a turn, trims the window to its maximum length and refreshes
// the TTL, all in one round trip.
func (w *SessionWindow) Push(ctx context.Context, userID, sessionID string, role Role, content string) error {
	payload, err := json.Marshal(SessionMessage{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("encoding session message: %w", err)
	}

	key := sessionKey(userID, sessionID)
	pipe := w.client.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-w.max), -1)
	pipe.Expire(ctx, key, w.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing session message: %w", err)
	}
	return nil
}

// History returns the window oldest first. A missing key is an empty session.
func (w *SessionWindow) History(ctx context.Context, userID, sessionID string) ([]SessionMessage, error) {
	raw, err := w.client.LRange(ctx, sessionKey(userID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session history: %w", err)
	}

	out := make([]SessionMessage, 0, len(raw))
	for _, item := range raw {
		var m SessionMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decoding session message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (w *SessionWindow) Clear(ctx context.Context, userID, sessionID string) error {
	if err := w.client.Del(ctx, sessionKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
