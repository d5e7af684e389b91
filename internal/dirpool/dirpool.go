// Package dirpool leases a scratch working directory per (host, owner,
// repo) so concurrent backport/force-push/version-script jobs against the
// same repository don't stomp on each other's checkout, while jobs against
// different repos run without contention.
package dirpool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/octohub/webhook-hub/internal/metrics"
	"github.com/octohub/webhook-hub/internal/model"
)

// Key identifies a pool slot.
type Key struct {
	Host  string
	Owner string
	Repo  string
}

func (k Key) dirName() string {
	return filepath.Join(k.Host, k.Owner, k.Repo)
}

// Lease is a held directory acquisition; call Release (typically via defer)
// to return it to the pool. A Lease is RAII-shaped the way spec.md §9
// describes: Release runs even if the caller panics, as long as it is
// deferred at the acquisition site.
type Lease struct {
	pool *Pool
	key  Key
	Dir  string

	released bool
	mu       sync.Mutex
}

// Release returns the lease's directory to the pool. Safe to call more than
// once; only the first call has effect.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.pool.release(l.key)
}

// slot tracks one (host, owner, repo)'s on-disk directory and whether it is
// currently leased.
type slot struct {
	dir        string
	leased     bool
	lastUsed   time.Time
	waiters    []chan struct{}
}

// Pool hands out exclusive directory leases keyed by repo, reusing the same
// on-disk path across leases so a repeatedly-backported repo's clone stays
// warm between jobs.
type Pool struct {
	baseDir string

	mu    sync.Mutex
	slots map[Key]*slot
}

// New creates a Pool rooted at baseDir, which is created if missing.
func New(baseDir string) (*Pool, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("dirpool: create base dir: %w", err)
	}
	return &Pool{baseDir: baseDir, slots: make(map[Key]*slot)}, nil
}

// KeyFor builds a pool key from a repo reference and the source host's
// identifier (e.g. "github.com").
func KeyFor(host string, repo model.RepoRef) Key {
	return Key{Host: host, Owner: repo.Owner, Repo: repo.Name}
}

// Acquire blocks until the directory for key is free (or ctx is done),
// then returns a Lease over it. Concurrent Acquire calls for different keys
// never block each other.
func (p *Pool) Acquire(ctx context.Context, key Key) (*Lease, error) {
	start := time.Now()
	defer func() { metrics.DirPoolWaitDuration.Observe(time.Since(start).Seconds()) }()

	for {
		p.mu.Lock()
		s, ok := p.slots[key]
		if !ok {
			s = &slot{dir: filepath.Join(p.baseDir, key.dirName())}
			p.slots[key] = s
		}
		if !s.leased {
			s.leased = true
			s.lastUsed = time.Now()
			p.mu.Unlock()
			if err := os.MkdirAll(s.dir, 0o755); err != nil {
				p.release(key)
				return nil, fmt.Errorf("dirpool: create %s: %w", s.dir, err)
			}
			metrics.DirPoolLeased.Inc()
			return &Lease{pool: p, key: key, Dir: s.dir}, nil
		}
		wait := make(chan struct{})
		s.waiters = append(s.waiters, wait)
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (p *Pool) release(key Key) {
	p.mu.Lock()
	s, ok := p.slots[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	s.leased = false
	s.lastUsed = time.Now()
	var next chan struct{}
	if len(s.waiters) > 0 {
		next, s.waiters = s.waiters[0], s.waiters[1:]
	}
	p.mu.Unlock()

	metrics.DirPoolLeased.Dec()
	if next != nil {
		close(next)
	}
}

// ReclaimIdle removes on-disk directories (and their slots) for repos that
// have sat unleased for longer than idleFor, bounding disk usage for
// repos that haven't seen activity in a while.
func (p *Pool) ReclaimIdle(idleFor time.Duration) []Key {
	p.mu.Lock()
	var toRemove []Key
	now := time.Now()
	for key, s := range p.slots {
		if !s.leased && now.Sub(s.lastUsed) > idleFor {
			toRemove = append(toRemove, key)
		}
	}
	for _, key := range toRemove {
		delete(p.slots, key)
	}
	p.mu.Unlock()

	for _, key := range toRemove {
		_ = os.RemoveAll(filepath.Join(p.baseDir, key.dirName()))
	}
	return toRemove
}
