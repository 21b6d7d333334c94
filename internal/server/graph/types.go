package graph

import "time"

// Hierarchy types accepted for note-hierarchy edges.
const (
	HierarchyBlock   = "block"
	HierarchySubpage = "subpage"
)

// ValidHierarchyType reports whether t names a known note hierarchy type.
func ValidHierarchyType(t string) bool {
	return t == HierarchyBlock || t == HierarchySubpage
}

// Note is a stored note record.
type Note struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NoteMeta is a note without its content, for exclude_content reads and
// tag-tree embeddings.
type NoteMeta struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Tag is a stored tag record.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NoteHierarchyEdge is one typed parent→child relation between notes.
type NoteHierarchyEdge struct {
	ParentID      int64  `json:"parent_id"`
	ChildID       int64  `json:"child_id"`
	HierarchyType string `json:"hierarchy_type"`
}

// TagHierarchyEdge is one parent→child relation between tags.
type TagHierarchyEdge struct {
	ParentID int64 `json:"parent_id"`
	ChildID  int64 `json:"child_id"`
}

// NoteTagAssociation links a note to a tag. Unordered, many-to-many.
type NoteTagAssociation struct {
	NoteID int64 `json:"note_id"`
	TagID  int64 `json:"tag_id"`
}

// TreeNote is the nested shape returned by the note tree projection.
// HierarchyType names the edge linking the node to its parent and is empty
// on roots.
type TreeNote struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	HierarchyType string     `json:"hierarchy_type,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
	Children      []TreeNote `json:"children"`
	Tags          []Tag      `json:"tags"`
}

// TreeTagWithNotes is the nested shape returned by the tag tree projection.
// Notes holds flat summaries of the notes carrying the tag, not a recursive
// expansion.
type TreeTagWithNotes struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Children []TreeTagWithNotes `json:"children"`
	Notes    []NoteMeta         `json:"notes"`
}

// TreeNoteInput is one node of a bulk tree submission. ID <= 0 marks a note
// to be created; nil Title/Content leave the stored value unchanged.
// HierarchyType applies to the edge from this node to its submitted parent
// and defaults to "block"; it is ignored on roots. Tags is the complete
// desired tag set for the note, identified by tag ID.
type TreeNoteInput struct {
	ID            int64           `json:"id"`
	Title         *string         `json:"title"`
	Content       *string         `json:"content"`
	HierarchyType string          `json:"hierarchy_type,omitempty"`
	Children      []TreeNoteInput `json:"children"`
	Tags          []Tag           `json:"tags"`
}
