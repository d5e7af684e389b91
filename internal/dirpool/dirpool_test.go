package dirpool

import (
	"context"
	"testing"
	"time"
)

func TestAcquireReleaseReusesDirectory(t *testing.T) {
	pool, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := Key{Host: "github.com", Owner: "acme", Repo: "widgets"}

	l1, err := pool.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	dir := l1.Dir
	l1.Release()

	l2, err := pool.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l2.Release()
	if l2.Dir != dir {
		t.Fatalf("expected reused directory %s, got %s", dir, l2.Dir)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	pool, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := Key{Host: "github.com", Owner: "acme", Repo: "widgets"}

	l1, err := pool.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		l2, err := pool.Acquire(context.Background(), key)
		if err != nil {
			t.Error(err)
			return
		}
		l2.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before first Release")
	case <-time.After(50 * time.Millisecond):
	}

	l1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never returned after Release")
	}
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	pool, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l1, err := pool.Acquire(context.Background(), Key{Host: "github.com", Owner: "acme", Repo: "widgets"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	l2, err := pool.Acquire(ctx, Key{Host: "github.com", Owner: "acme", Repo: "gadgets"})
	if err != nil {
		t.Fatalf("Acquire for distinct key should not block: %v", err)
	}
	l2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	pool, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := Key{Host: "github.com", Owner: "acme", Repo: "widgets"}
	l, err := pool.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	l.Release()
	l.Release() // must not panic or double-unblock a waiter
}
