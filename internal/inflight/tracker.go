// Package inflight cancels superseded requests. Each (client, operation)
// key has at most one live context; starting a new one cancels the old.
package inflight

import (
	"context"
	"sync"
)

type key struct {
	client    string
	operation string
}

type entry struct {
	id     uint64
	cancel context.CancelFunc
}

// Tracker maps (client, operation) pairs to the cancel func of their
// latest submission
type Tracker struct {
	mu      sync.Mutex
	next    uint64
	entries map[key]entry
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[key]entry)}
}

// Begin derives a cancellable context for a submission. Any earlier
// submission with the same client and operation is cancelled. The returned
// done func must be called when the submission finishes. An empty client
// is never tracked.
func (t *Tracker) Begin(ctx context.Context, client, operation string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if client == "" {
		return ctx, cancel
	}

	k := key{client: client, operation: operation}

	t.mu.Lock()
	if prev, ok := t.entries[k]; ok {
		prev.cancel()
	}
	t.next++
	id := t.next
	t.entries[k] = entry{id: id, cancel: cancel}
	t.mu.Unlock()

	done := func() {
		cancel()
		t.mu.Lock()
		if cur, ok := t.entries[k]; ok && cur.id == id {
			delete(t.entries, k)
		}
		t.mu.Unlock()
	}
	return ctx, done
}

// Len reports how many submissions are currently tracked
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
