// Package worker runs the hub's four fire-and-forget job kinds (backport,
// force-push, version-script, chat) through a single bounded-concurrency
// pool with one queue per kind, so a flood of one kind never starves the
// others.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/metrics"
)

// Kind names one of the pool's four job queues.
type Kind string

const (
	KindBackport      Kind = "backport"
	KindForcePush     Kind = "force_push"
	KindVersionScript Kind = "version_script"
	KindChat          Kind = "chat"
)

var allKinds = []Kind{KindBackport, KindForcePush, KindVersionScript, KindChat}

// Job is one unit of work submitted to the pool.
type Job struct {
	Kind Kind
	Run  func(ctx context.Context) error
}

// Pool processes Jobs with a shared concurrency limit across per-kind
// queues.
type Pool struct {
	queues map[Kind]chan Job
	sem    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a Pool with the given total concurrency and per-kind queue
// depth.
func NewPool(concurrency, queueDepth int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queues: make(map[Kind]chan Job, len(allKinds)),
		sem:    make(chan struct{}, concurrency),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, k := range allKinds {
		p.queues[k] = make(chan Job, queueDepth)
	}
	return p
}

// Start launches one dispatcher goroutine per job kind. Safe to call once.
func (p *Pool) Start() {
	for _, k := range allKinds {
		p.wg.Add(1)
		go p.dispatch(k)
	}
}

// Stop signals all dispatchers to exit and waits for in-flight jobs to
// finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Submit enqueues job onto its kind's queue, fire-and-forget. Returns an
// error immediately if that queue is full rather than blocking the caller
// (always the HTTP request goroutine handling a webhook).
func (p *Pool) Submit(job Job) error {
	queue, ok := p.queues[job.Kind]
	if !ok {
		return fmt.Errorf("worker: unknown job kind %q", job.Kind)
	}
	select {
	case queue <- job:
		metrics.WorkerQueueDepth.WithLabelValues(string(job.Kind)).Set(float64(len(queue)))
		return nil
	default:
		return fmt.Errorf("worker: queue for kind %q is full", job.Kind)
	}
}

func (p *Pool) dispatch(kind Kind) {
	defer p.wg.Done()
	queue := p.queues[kind]
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-queue:
			metrics.WorkerQueueDepth.WithLabelValues(string(kind)).Set(float64(len(queue)))
			p.runBounded(job)
		}
	}
}

// runBounded blocks until a concurrency slot is free, then runs job in its
// own goroutine so dispatch can keep draining its queue.
func (p *Pool) runBounded(job Job) {
	select {
	case p.sem <- struct{}{}:
	case <-p.ctx.Done():
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()

		start := time.Now()
		err := job.Run(p.ctx)
		metrics.ObserveWorkerJob(string(job.Kind), err, time.Since(start))
		if err != nil {
			log.Error().Err(err).Str("kind", string(job.Kind)).Msg("worker job failed")
		}
	}()
}
