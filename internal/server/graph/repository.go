package graph

import (
	"context"

	"github.com/draftnotes/notegraph/internal/server/events"
)

// Repository is the storage contract for the hierarchy engine. The SQLite
// implementation is the only backend; the interface exists so handlers can
// be tested against fakes.
type Repository interface {
	// Lifecycle
	Close(ctx context.Context) error
	SetEventEmitter(emitter func(events.Event))

	// Entity store: notes
	CreateNote(ctx context.Context, title, content string) (*Note, error)
	GetNote(ctx context.Context, id int64) (*Note, error)
	ListNotes(ctx context.Context) ([]Note, error)
	UpdateNote(ctx context.Context, id int64, title, content *string) (*Note, error)
	DeleteNote(ctx context.Context, id int64) error

	// Entity store: tags
	CreateTag(ctx context.Context, name string) (*Tag, error)
	GetTag(ctx context.Context, id int64) (*Tag, error)
	ListTags(ctx context.Context) ([]Tag, error)
	UpdateTag(ctx context.Context, id int64, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	// Edge ledger
	AttachNoteHierarchy(ctx context.Context, childID, parentID int64, hierarchyType string) error
	DetachNoteHierarchy(ctx context.Context, childID int64) error
	AttachTagHierarchy(ctx context.Context, childID, parentID int64) error
	DetachTagHierarchy(ctx context.Context, childID int64) error
	AttachTag(ctx context.Context, noteID, tagID int64) error
	DetachTag(ctx context.Context, noteID, tagID int64) error
	ListNoteHierarchyEdges(ctx context.Context) ([]NoteHierarchyEdge, error)
	ListTagHierarchyEdges(ctx context.Context) ([]TagHierarchyEdge, error)
	ListNoteTagAssociations(ctx context.Context) ([]NoteTagAssociation, error)

	// Tree projection
	ProjectNoteTree(ctx context.Context, hierarchyType string) ([]TreeNote, error)
	ProjectTagTree(ctx context.Context) ([]TreeTagWithNotes, error)
	NotePaths(ctx context.Context) (map[int64]string, error)
	NotePath(ctx context.Context, id int64) (string, error)

	// Bulk reconciliation
	ReconcileNoteTree(ctx context.Context, desired []TreeNoteInput) error
}
