package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agridesk/agridesk/internal/shared"
)

// Session is a time-bounded proof of continued authentication. It lives only
// in the session store; losing it costs one re-authentication.
type Session struct {
	ID      string `json:"id"`
	ActorID int64  `json:"actor_id"`
	// IdentityID names the identity-provider session backing this one, so
	// sign-out can revoke both together.
	IdentityID   string    `json:"identity_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store abstracts the ephemeral session state.
type Store interface {
	Save(ctx context.Context, sess Session) error
	// Get returns shared.ErrSessionInvalid for unknown IDs.
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions in Redis under session:<id>. The redis TTL acts
// as a backstop slightly behind the logical expiry so the sweep observes the
// expiry first.
type RedisStore struct {
	client *redis.Client
	grace  time.Duration
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, grace: time.Minute}
}

func redisKey(id string) string {
	return "session:" + id
}

// Save persists the session.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt) + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}
	if err := s.client.Set(ctx, redisKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Get loads the session.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	payload, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, shared.ErrSessionInvalid
		}
		return Session{}, fmt.Errorf("session: get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, shared.ErrSessionInvalid
	}
	return sess, nil
}

// Delete removes the session. Deleting an absent session is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
