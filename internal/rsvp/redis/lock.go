package redis

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes every confirmed-count mutation for one event behind
// a single SetNX key. The admission gate and the waitlist promoter both
// run their read-modify-write under this lock, so they can never
// interleave for the same event. Different events use different keys
// and proceed in parallel.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
	TTL    time.Duration
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
		TTL:    lockTTLFromEnv(),
	}
}

// lockTTLFromEnv reads EVENT_LOCK_TTL_SECONDS, defaulting to 10s. The
// TTL is a crash backstop: normal paths release explicitly.
func lockTTLFromEnv() time.Duration {
	defaultTTL := 10 * time.Second

	ttlStr := os.Getenv("EVENT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		log.Println("REDIS: Invalid EVENT_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 10s")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

func lockKey(eventID string) string {
	return "event_lock:" + eventID
}

// AcquireEventLock takes the per-event lock for the given owner token.
// Returns false when another operation currently holds it.
func (r *Redis) AcquireEventLock(ctx context.Context, eventID, token string) (bool, error) {
	return r.Client.SetNX(ctx, lockKey(eventID), token, r.TTL).Result()
}

// ReleaseEventLock drops the lock, but only if the caller still owns
// it. A lock that expired and was retaken by someone else is left
// alone.
func (r *Redis) ReleaseEventLock(ctx context.Context, eventID, token string) error {
	key := lockKey(eventID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
