package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsJob(t *testing.T) {
	p := NewPool(2, 4)
	p.Start()
	defer p.Stop()

	done := make(chan struct{})
	err := p.Submit(Job{Kind: KindChat, Run: func(ctx context.Context) error {
		close(done)
		return nil
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestSubmitQueueFullReturnsError(t *testing.T) {
	p := NewPool(1, 1)
	// no Start(): nothing drains the queue, so it fills immediately.
	block := make(chan struct{})
	defer close(block)

	if err := p.Submit(Job{Kind: KindBackport, Run: func(ctx context.Context) error {
		<-block
		return nil
	}}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := p.Submit(Job{Kind: KindBackport, Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Fatal("expected second Submit to report queue full")
	}
}

func TestConcurrencyBoundedAcrossKinds(t *testing.T) {
	p := NewPool(2, 10)
	p.Start()
	defer p.Stop()

	var running int32
	var maxRunning int32
	release := make(chan struct{})
	var started sync32

	for i := 0; i < 6; i++ {
		kind := allKinds[i%len(allKinds)]
		_ = p.Submit(Job{Kind: kind, Run: func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			started.inc()
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return nil
		}})
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt32(&maxRunning) > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, observed %d", maxRunning)
	}
}

type sync32 struct {
	n int32
}

func (s *sync32) inc() { atomic.AddInt32(&s.n, 1) }

func TestUnknownKindRejected(t *testing.T) {
	p := NewPool(1, 1)
	err := p.Submit(Job{Kind: Kind("bogus"), Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
