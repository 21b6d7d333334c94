package subscriptions

import (
	"github.com/draftnotes/notegraph/internal/server/events"
)

// Match reports whether an event satisfies a pattern. Every populated
// pattern field must admit the event; an empty pattern matches all events.
func Match(event events.Event, pattern Pattern) bool {
	if len(pattern.EventTypes) > 0 && !containsString(pattern.EventTypes, event.Type) {
		return false
	}

	if len(pattern.HierarchyTypes) > 0 {
		if event.HierarchyType == "" || !containsString(pattern.HierarchyTypes, event.HierarchyType) {
			return false
		}
	}

	// Note id filters match the subject note or either endpoint of a
	// note hierarchy edge.
	if len(pattern.NoteIDs) > 0 {
		if !containsID(pattern.NoteIDs, event.NoteID) &&
			!matchesEdgeEndpoint(pattern.NoteIDs, event, isNoteEdgeEvent) {
			return false
		}
	}

	if len(pattern.TagIDs) > 0 {
		if !containsID(pattern.TagIDs, event.TagID) &&
			!matchesEdgeEndpoint(pattern.TagIDs, event, isTagEdgeEvent) {
			return false
		}
	}

	return true
}

func isNoteEdgeEvent(eventType string) bool {
	return eventType == events.EventNoteEdgeAttached || eventType == events.EventNoteEdgeDetached
}

func isTagEdgeEvent(eventType string) bool {
	return eventType == events.EventTagEdgeAttached || eventType == events.EventTagEdgeDetached
}

func matchesEdgeEndpoint(ids []int64, event events.Event, isEdge func(string) bool) bool {
	if !isEdge(event.Type) {
		return false
	}
	return containsID(ids, event.ParentID) || containsID(ids, event.ChildID)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsID(list []int64, v int64) bool {
	if v == 0 {
		return false
	}
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}
