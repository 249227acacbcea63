package redislock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	lock, err := New(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	t.Cleanup(func() { _ = lock.Close() })
	return lock, mr
}

func TestLockAcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()
	resource := "io/jenkins/tools/bom/bom/1/bom-1.pom"

	ok, err := lock.Acquire(ctx, resource, "invocation-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock acquired, err=%v ok=%v", err, ok)
	}

	if ok, err := lock.Acquire(ctx, resource, "invocation-b", time.Minute); err != nil || ok {
		t.Fatalf("expected second acquire to fail, err=%v ok=%v", err, ok)
	}

	// A release by a non-owner must not drop the lock
	if err := lock.Release(ctx, resource, "invocation-b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := lock.Acquire(ctx, resource, "invocation-c", time.Minute); ok {
		t.Fatal("lock was released by a non-owner")
	}

	if err := lock.Release(ctx, resource, "invocation-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := lock.Acquire(ctx, resource, "invocation-b", time.Minute); err != nil || !ok {
		t.Fatalf("expected acquire after release, err=%v ok=%v", err, ok)
	}
}

func TestLockExpires(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	if ok, err := lock.Acquire(ctx, "a.pom", "invocation-a", time.Second); err != nil || !ok {
		t.Fatalf("acquire: err=%v ok=%v", err, ok)
	}
	mr.FastForward(2 * time.Second)

	if ok, err := lock.Acquire(ctx, "a.pom", "invocation-b", time.Second); err != nil || !ok {
		t.Fatalf("expected expired lock to be free, err=%v ok=%v", err, ok)
	}
}

func TestLockDefaultTTL(t *testing.T) {
	lock, mr := newTestLock(t)

	if ok, err := lock.Acquire(context.Background(), "a.pom", "invocation-a", 0); err != nil || !ok {
		t.Fatalf("acquire: err=%v ok=%v", err, ok)
	}
	if ttl := mr.TTL(keyPrefix + "a.pom"); ttl != defaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, defaultTTL)
	}
}

func TestLockValidation(t *testing.T) {
	lock, _ := newTestLock(t)

	if _, err := lock.Acquire(context.Background(), " ", "owner", time.Second); err == nil {
		t.Error("expected error for empty resource")
	}
	if _, err := lock.Acquire(context.Background(), "a.pom", "", time.Second); err == nil {
		t.Error("expected error for empty owner")
	}
}

func TestNewUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := New(context.Background(), "redis://"+addr); err == nil {
		t.Error("expected error for unreachable redis")
	}
	if _, err := New(context.Background(), "://bad"); err == nil {
		t.Error("expected error for invalid url")
	}
}
