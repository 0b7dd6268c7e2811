package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/config"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// LoginThrottle tracks failed login attempts per account in Redis and
// blocks further attempts once the limit is reached within the window.
// Redis unavailability fails open: a broken cache must not lock every
// admin out.
type LoginThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLoginThrottle creates a throttle allowing limit failed attempts per
// window
func NewLoginThrottle(client *redis.Client, limit int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether another login attempt is permitted for the email
func (lt *LoginThrottle) Allow(ctx context.Context, email string) bool {
	count, err := lt.client.Get(ctx, lt.key(email)).Int()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("Login throttle lookup failed, allowing attempt: %v", err)
		}
		return true
	}
	return count < lt.limit
}

// recordFailureScript increments the failure counter and attaches the
// window TTL in one atomic step, so a counter can never persist without an
// expiry and lock the account out indefinitely.
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RecordFailure counts a failed login attempt for the email
func (lt *LoginThrottle) RecordFailure(ctx context.Context, email string) {
	if err := recordFailureScript.Run(ctx, lt.client, []string{lt.key(email)}, lt.window.Milliseconds()).Err(); err != nil {
		logrus.Warnf("Login throttle update failed: %v", err)
	}
}

// Reset clears the failure counter after a successful login
func (lt *LoginThrottle) Reset(ctx context.Context, email string) {
	if err := lt.client.Del(ctx, lt.key(email)).Err(); err != nil {
		logrus.Warnf("Login throttle reset failed: %v", err)
	}
}

// key hashes the email so raw addresses never appear as Redis keys
func (lt *LoginThrottle) key(email string) string {
	sum := sha256.Sum256([]byte(email))
	return "login:failures:" + hex.EncodeToString(sum[:])
}
