// Package dedup implements the ingress's "process each webhook delivery
// exactly once" guarantee: an in-memory LRU of recent delivery ids backs a
// durable sqlite record, so a restart doesn't reopen a window for replays.
package dedup

import (
	"container/list"
	"context"
	"sync"
)

// Capacity bounds the in-memory LRU of recently-seen delivery ids.
const Capacity = 1000

// Store records webhook delivery ids durably; the concrete implementation
// is internal/store's sqlite-backed DB.
type Store interface {
	RecordDelivery(ctx context.Context, deliveryID, eventKind string) (first bool, err error)
}

// Dedup layers a bounded in-memory LRU in front of a durable Store: a hit
// in the LRU short-circuits the sqlite round trip for the hot path (a
// delivery retried within seconds of the original, the common case for a
// source host's own retry-on-5xx behavior), while the durable store is the
// source of truth across restarts.
type Dedup struct {
	store Store

	mu    sync.Mutex
	lru   *list.List
	index map[string]*list.Element
}

// New creates a Dedup backed by store.
func New(store Store) *Dedup {
	return &Dedup{store: store, lru: list.New(), index: make(map[string]*list.Element)}
}

// Observe reports whether this is the first time deliveryID has been seen —
// "first caller wins" atomic semantics, per spec.md §4.5. Only one caller
// across concurrent goroutines (and, via the durable store, across
// restarts) ever receives first=true for a given id.
func (d *Dedup) Observe(ctx context.Context, deliveryID, eventKind string) (first bool, err error) {
	d.mu.Lock()
	if _, seen := d.index[deliveryID]; seen {
		d.mu.Unlock()
		return false, nil
	}
	d.mu.Unlock()

	first, err = d.store.RecordDelivery(ctx, deliveryID, eventKind)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	d.remember(deliveryID)
	d.mu.Unlock()

	return first, nil
}

// remember must be called with d.mu held.
func (d *Dedup) remember(deliveryID string) {
	if el, ok := d.index[deliveryID]; ok {
		d.lru.MoveToFront(el)
		return
	}
	el := d.lru.PushFront(deliveryID)
	d.index[deliveryID] = el
	for d.lru.Len() > Capacity {
		oldest := d.lru.Back()
		if oldest == nil {
			break
		}
		d.lru.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
}
