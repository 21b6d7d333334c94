package client

import "time"

// Wire types for the notegraph HTTP API.

// Note is a stored note record
type Note struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Tag is a stored tag record
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TreeNote is one node of a rendered note tree
type TreeNote struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
	HierarchyType string     `json:"hierarchy_type,omitempty"`
	Children      []TreeNote `json:"children"`
	Tags          []Tag      `json:"tags"`
}

// TreeNoteInput is one node of a tree submission. A zero ID creates a new
// note; nil Title/Content leave stored values unchanged.
type TreeNoteInput struct {
	ID            int64           `json:"id,omitempty"`
	Title         *string         `json:"title,omitempty"`
	Content       *string         `json:"content,omitempty"`
	HierarchyType string          `json:"hierarchy_type,omitempty"`
	Children      []TreeNoteInput `json:"children,omitempty"`
	Tags          []Tag           `json:"tags,omitempty"`
}

// NoteHierarchyEdge is one typed parent-child note edge
type NoteHierarchyEdge struct {
	ParentID      int64  `json:"parent_id"`
	ChildID       int64  `json:"child_id"`
	HierarchyType string `json:"hierarchy_type"`
}

// TreeTagWithNotes is one node of the rendered tag tree
type TreeTagWithNotes struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Children []TreeTagWithNotes `json:"children"`
	Notes    []NoteSummary      `json:"notes"`
}

// NoteSummary is a note without its content
type NoteSummary struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}
