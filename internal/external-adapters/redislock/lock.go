// Package redislock provides a Redis-backed publish lock.
package redislock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "incrementals:publish:"
	defaultTTL = 2 * time.Minute
)

// releaseScript deletes the key only while it still belongs to the caller
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Lock implements gateways.PublishLock with SET NX PX and compare-and-delete
type Lock struct {
	client *redis.Client
}

// New connects to url and verifies the server is reachable
func New(ctx context.Context, url string) (*Lock, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Lock{client: client}, nil
}

// Close shuts down the Redis client
func (l *Lock) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Ping reports whether Redis is reachable
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Acquire takes resource for owner unless someone else holds it
func (l *Lock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	resource = strings.TrimSpace(resource)
	owner = strings.TrimSpace(owner)
	if resource == "" || owner == "" {
		return false, fmt.Errorf("resource and owner required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	ok, err := l.client.SetNX(ctx, keyPrefix+resource, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	return ok, nil
}

// Release drops resource if owner still holds it
func (l *Lock) Release(ctx context.Context, resource, owner string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{keyPrefix + resource}, owner).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", resource, err)
	}
	return nil
}
