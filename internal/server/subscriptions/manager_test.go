package subscriptions

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/draftnotes/notegraph/internal/server/events"
	"github.com/draftnotes/notegraph/internal/server/graph"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(log.New(io.Discard))
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		event   events.Event
		pattern Pattern
		want    bool
	}{
		{
			name:  "empty pattern matches everything",
			event: events.Event{Type: events.EventNoteCreated, NoteID: 1},
			want:  true,
		},
		{
			name:    "event type match",
			event:   events.Event{Type: events.EventNoteCreated},
			pattern: Pattern{EventTypes: []string{events.EventNoteCreated, events.EventNoteDeleted}},
			want:    true,
		},
		{
			name:    "event type mismatch",
			event:   events.Event{Type: events.EventTagCreated},
			pattern: Pattern{EventTypes: []string{events.EventNoteCreated}},
			want:    false,
		},
		{
			name:    "hierarchy type match",
			event:   events.Event{Type: events.EventNoteEdgeAttached, HierarchyType: "subpage"},
			pattern: Pattern{HierarchyTypes: []string{"subpage"}},
			want:    true,
		},
		{
			name:    "hierarchy filter rejects events without a type",
			event:   events.Event{Type: events.EventNoteCreated, NoteID: 1},
			pattern: Pattern{HierarchyTypes: []string{"block"}},
			want:    false,
		},
		{
			name:    "note id match on subject",
			event:   events.Event{Type: events.EventNoteUpdated, NoteID: 7},
			pattern: Pattern{NoteIDs: []int64{7}},
			want:    true,
		},
		{
			name:    "note id match on edge endpoint",
			event:   events.Event{Type: events.EventNoteEdgeAttached, ParentID: 3, ChildID: 9},
			pattern: Pattern{NoteIDs: []int64{9}},
			want:    true,
		},
		{
			name:    "note id mismatch",
			event:   events.Event{Type: events.EventNoteUpdated, NoteID: 7},
			pattern: Pattern{NoteIDs: []int64{8}},
			want:    false,
		},
		{
			name:    "tag id ignores note edge endpoints",
			event:   events.Event{Type: events.EventNoteEdgeAttached, ParentID: 3, ChildID: 9},
			pattern: Pattern{TagIDs: []int64{9}},
			want:    false,
		},
		{
			name:    "all filters must admit",
			event:   events.Event{Type: events.EventNoteUpdated, NoteID: 7},
			pattern: Pattern{EventTypes: []string{events.EventNoteUpdated}, NoteIDs: []int64{1}},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.event, tt.pattern); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManagerRegistry(t *testing.T) {
	m := newTestManager(t)

	sub, err := m.Register(&CreateSubscriptionRequest{Name: "s", Webhook: "http://localhost/hook"})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if sub.ID == "" || !sub.Enabled {
		t.Fatalf("unexpected subscription: %+v", sub)
	}

	if _, err := m.Get(sub.ID); err != nil {
		t.Errorf("get failed: %v", err)
	}
	if got := m.List(); len(got) != 1 {
		t.Errorf("expected 1 subscription, got %d", len(got))
	}

	name := "renamed"
	updated, err := m.Update(sub.ID, &UpdateSubscriptionRequest{Name: &name})
	if err != nil {
		t.Fatalf("updating: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("name = %q", updated.Name)
	}

	if err := m.Unregister(sub.ID); err != nil {
		t.Fatalf("unregistering: %v", err)
	}
	if _, err := m.Get(sub.ID); !graph.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := m.Unregister(sub.ID); !graph.IsNotFound(err) {
		t.Errorf("expected not found on double unregister, got %v", err)
	}
}

func TestManagerValidation(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Register(&CreateSubscriptionRequest{Webhook: "http://x"}); !graph.IsInvalidInput(err) {
		t.Errorf("expected invalid input for missing name, got %v", err)
	}
	if _, err := m.Register(&CreateSubscriptionRequest{Name: "x"}); !graph.IsInvalidInput(err) {
		t.Errorf("expected invalid input for missing webhook, got %v", err)
	}
}

func TestStreamDelivery(t *testing.T) {
	m := newTestManager(t)

	ch, detach := m.AttachStream()
	defer detach()

	m.EmitEvent(events.Event{ID: "e1", Type: events.EventNoteCreated, NoteID: 5})

	select {
	case ev := <-ch:
		if ev.ID != "e1" || ev.NoteID != 5 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the stream")
	}

	// Detach closes the channel once buffered events drain.
	detach()
	for {
		if _, open := <-ch; !open {
			return
		}
	}
}
