// Package events carries mutation notifications out of the graph
// repository. The repository emits one event per committed change; the Bus
// fans them out to subscribers without ever blocking a write path.
package events

import (
	"context"
	"sync"
	"time"
)

// Event represents a committed change in the graph
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Entity event fields
	NoteID int64 `json:"note_id,omitempty"`
	TagID  int64 `json:"tag_id,omitempty"`

	// Edge event fields
	ParentID      int64  `json:"parent_id,omitempty"`
	ChildID       int64  `json:"child_id,omitempty"`
	HierarchyType string `json:"hierarchy_type,omitempty"`
}

// Event type constants
const (
	EventNoteCreated      = "note.created"
	EventNoteUpdated      = "note.updated"
	EventNoteDeleted      = "note.deleted"
	EventTagCreated       = "tag.created"
	EventTagUpdated       = "tag.updated"
	EventTagDeleted       = "tag.deleted"
	EventNoteEdgeAttached = "note_hierarchy.attached"
	EventNoteEdgeDetached = "note_hierarchy.detached"
	EventTagEdgeAttached  = "tag_hierarchy.attached"
	EventTagEdgeDetached  = "tag_hierarchy.detached"
	EventNoteTagged       = "note.tagged"
	EventNoteUntagged     = "note.untagged"
	EventTreeReconciled   = "tree.reconciled"
)

// Subscriber receives events from a Bus.
type Subscriber func(Event)

// Bus fans events out to subscribers on a dedicated goroutine. Emit never
// blocks: if the buffer is full the event is dropped, since subscribers are
// observers, not part of the storage contract.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   []Subscriber
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewBus creates a bus with a buffered event channel.
func NewBus() *Bus {
	return &Bus{ch: make(chan Event, 1000)}
}

// Subscribe registers a subscriber. Must be called before Start.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Start begins delivering events until Stop is called.
func (b *Bus) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.ch:
				b.mu.RLock()
				subs := b.subs
				b.mu.RUnlock()
				for _, fn := range subs {
					fn(ev)
				}
			}
		}
	}()
}

// Stop shuts down delivery. Buffered events may be dropped.
func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// Emit enqueues an event for delivery, dropping it if the buffer is full.
func (b *Bus) Emit(ev Event) {
	select {
	case b.ch <- ev:
	default:
	}
}
