package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// SessionPurgeJob scans session keys and deletes those whose logical expiry
// has passed. The redis TTL grace eventually collects them anyway; the purge
// keeps the window between logical and physical expiry short on busy systems.
type SessionPurgeJob struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionPurgeJob constructs the job.
func NewSessionPurgeJob(client *redis.Client, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{client: client, logger: logger, now: time.Now}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var purged int
	iter := j.client.Scan(ctx, 0, "session:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := j.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var sess struct {
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := json.Unmarshal(payload, &sess); err != nil {
			// Unreadable session state is dead weight either way.
			_ = j.client.Del(ctx, key).Err()
			purged++
			continue
		}
		if !j.now().Before(sess.ExpiresAt) {
			if err := j.client.Del(ctx, key).Err(); err == nil {
				purged++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("session purge completed", slog.Int("purged", purged))
	}
	return nil
}
