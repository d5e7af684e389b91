package teamcache

import (
	"context"
	"testing"
	"time"
)

func TestMembersCachesResult(t *testing.T) {
	calls := 0
	c := New(func(ctx context.Context, owner, slug string) ([]string, error) {
		calls++
		return []string{"alice", "bob"}, nil
	})

	for i := 0; i < 3; i++ {
		members, err := c.Members(context.Background(), "acme", "core")
		if err != nil {
			t.Fatalf("Members: %v", err)
		}
		if len(members) != 2 {
			t.Fatalf("got %d members, want 2", len(members))
		}
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestMembersRefetchesAfterTTL(t *testing.T) {
	calls := 0
	c := New(func(ctx context.Context, owner, slug string) ([]string, error) {
		calls++
		return []string{"alice"}, nil
	})
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	c.Members(context.Background(), "acme", "core")
	fakeNow = fakeNow.Add(TTL + time.Minute)
	c.Members(context.Background(), "acme", "core")

	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}

func TestIsMember(t *testing.T) {
	c := New(func(ctx context.Context, owner, slug string) ([]string, error) {
		return []string{"alice", "bob"}, nil
	})
	ok, err := c.IsMember(context.Background(), "acme", "core", "bob")
	if err != nil || !ok {
		t.Fatalf("IsMember(bob) = %v, %v, want true, nil", ok, err)
	}
	ok, err = c.IsMember(context.Background(), "acme", "core", "carol")
	if err != nil || ok {
		t.Fatalf("IsMember(carol) = %v, %v, want false, nil", ok, err)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	calls := 0
	c := New(func(ctx context.Context, owner, slug string) ([]string, error) {
		calls++
		return []string{"alice"}, nil
	})
	c.Members(context.Background(), "acme", "core")
	c.Invalidate("acme", "core")
	c.Members(context.Background(), "acme", "core")
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}
