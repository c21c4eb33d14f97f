package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEvent is one row-level change notification. Row carries the affected
// row's new state as JSON; consumers re-derive their view from the store
// rather than patching from the payload, so duplicates and reordering are
// harmless.
type ChangeEvent struct {
	Table string    `json:"table"`
	Op    Operation `json:"op"`
	RowID string    `json:"row_id"`
	// Scope groups rows under their owning aggregate, e.g. the session id for
	// participant rows. Publishers set it so subscribers can watch one match.
	Scope     string          `json:"scope,omitempty"`
	Row       json.RawMessage `json:"row,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Filter narrows a subscription to rows of interest. Zero value matches all
// events of the table.
type Filter struct {
	RowID string // match ChangeEvent.RowID exactly
	Scope string // match ChangeEvent.Scope exactly
}

func (f Filter) matches(ev ChangeEvent) bool {
	if f.RowID != "" && ev.RowID != f.RowID {
		return false
	}
	if f.Scope != "" && ev.Scope != f.Scope {
		return false
	}
	return true
}

// Hub delivers change events to per-table subscribers. No ordering or
// exactly-once guarantees; handlers must be idempotent.
type Hub interface {
	Publish(ctx context.Context, event ChangeEvent) error
	// Subscribe returns a stream of events for the table matching the filter
	// plus a cancel func the caller must invoke to release the subscription.
	Subscribe(ctx context.Context, table string, filter Filter) (<-chan ChangeEvent, func(), error)
	Close() error
}

type subscriber struct {
	table  string
	filter Filter
	ch     chan ChangeEvent
}

// MemoryHub is the in-process Hub used in tests and single-node deployments.
type MemoryHub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subscribers: make(map[*subscriber]struct{})}
}

func (h *MemoryHub) Publish(_ context.Context, event ChangeEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.table != event.Table {
			continue
		}
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber: drop the oldest queued event so the newest
			// always lands. Consumers re-derive from the store anyway.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- event
		}
	}
	return nil
}

func (h *MemoryHub) Subscribe(_ context.Context, table string, filter Filter) (<-chan ChangeEvent, func(), error) {
	sub := &subscriber{
		table:  table,
		filter: filter,
		ch:     make(chan ChangeEvent, 16),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[sub]; ok {
			delete(h.subscribers, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
	return nil
}
