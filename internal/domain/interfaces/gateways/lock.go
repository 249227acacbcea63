package gateways

import (
	"context"
	"time"
)

// PublishLock keeps two invocations from uploading the same artifact at once
type PublishLock interface {
	// Acquire returns false when another owner currently holds resource
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)

	// Release drops the lock if owner still holds it
	Release(ctx context.Context, resource, owner string) error
}
