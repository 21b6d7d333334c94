package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/draftnotes/notegraph/internal/server/events"
	"github.com/draftnotes/notegraph/pkg/forest"
)

// Edge ledger. The incremental attach/detach API and the bulk reconciler
// share the tx-scoped helpers below, so both paths enforce identical
// existence, single-parent, and cycle invariants.

// AttachNoteHierarchy links child under parent with the given hierarchy
// type. An existing parent edge for (child, hierarchyType) is replaced:
// attach is a move, not a conflict.
func (r *SQLiteRepository) AttachNoteHierarchy(ctx context.Context, childID, parentID int64, hierarchyType string) error {
	if !ValidHierarchyType(hierarchyType) {
		return invalidInputf("unknown hierarchy type %q", hierarchyType)
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		return attachNoteEdge(ctx, tx, childID, parentID, hierarchyType)
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventNoteEdgeAttached)
	ev.ChildID = childID
	ev.ParentID = parentID
	ev.HierarchyType = hierarchyType
	r.emit([]events.Event{ev})

	return nil
}

func attachNoteEdge(ctx context.Context, tx *sql.Tx, childID, parentID int64, hierarchyType string) error {
	if childID == parentID {
		return cyclef("note %d cannot be its own parent", childID)
	}
	if err := noteExists(ctx, tx, childID); err != nil {
		return err
	}
	if err := noteExists(ctx, tx, parentID); err != nil {
		return err
	}

	parents, err := loadNoteParents(ctx, tx, hierarchyType)
	if err != nil {
		return err
	}
	// Evaluate the cycle check against the graph without the child's
	// current edge, since attach replaces it.
	delete(parents, childID)
	if forest.WouldCycle(parents, childID, parentID) {
		return cyclef("attaching note %d under %d (%s)", childID, parentID, hierarchyType)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM note_hierarchy WHERE child_id = ? AND hierarchy_type = ?`,
		childID, hierarchyType); err != nil {
		return fmt.Errorf("replacing note hierarchy edge: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO note_hierarchy (child_id, parent_id, hierarchy_type) VALUES (?, ?, ?)`,
		childID, parentID, hierarchyType); err != nil {
		return fmt.Errorf("inserting note hierarchy edge: %w", err)
	}
	return nil
}

// DetachNoteHierarchy removes every hierarchy edge where childID is the
// child, across all hierarchy types. Detaching a child with no parent is
// not an error.
func (r *SQLiteRepository) DetachNoteHierarchy(ctx context.Context, childID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		return detachNoteEdges(ctx, tx, childID)
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventNoteEdgeDetached)
	ev.ChildID = childID
	r.emit([]events.Event{ev})

	return nil
}

func detachNoteEdges(ctx context.Context, tx *sql.Tx, childID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM note_hierarchy WHERE child_id = ?`, childID); err != nil {
		return fmt.Errorf("detaching note %d: %w", childID, err)
	}
	return nil
}

// AttachTagHierarchy links a child tag under a parent tag. Tags have a
// single hierarchy dimension; the existing parent edge, if any, is replaced.
func (r *SQLiteRepository) AttachTagHierarchy(ctx context.Context, childID, parentID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if childID == parentID {
			return cyclef("tag %d cannot be its own parent", childID)
		}
		if err := tagExists(ctx, tx, childID); err != nil {
			return err
		}
		if err := tagExists(ctx, tx, parentID); err != nil {
			return err
		}

		parents, err := loadTagParents(ctx, tx)
		if err != nil {
			return err
		}
		delete(parents, childID)
		if forest.WouldCycle(parents, childID, parentID) {
			return cyclef("attaching tag %d under %d", childID, parentID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tag_hierarchy WHERE child_id = ?`, childID); err != nil {
			return fmt.Errorf("replacing tag hierarchy edge: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tag_hierarchy (child_id, parent_id) VALUES (?, ?)`,
			childID, parentID); err != nil {
			return fmt.Errorf("inserting tag hierarchy edge: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventTagEdgeAttached)
	ev.ChildID = childID
	ev.ParentID = parentID
	r.emit([]events.Event{ev})

	return nil
}

// DetachTagHierarchy removes the parent edge of a child tag, if any.
func (r *SQLiteRepository) DetachTagHierarchy(ctx context.Context, childID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tag_hierarchy WHERE child_id = ?`, childID); err != nil {
			return fmt.Errorf("detaching tag %d: %w", childID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventTagEdgeDetached)
	ev.ChildID = childID
	r.emit([]events.Event{ev})

	return nil
}

// AttachTag associates a tag with a note. Idempotent set insert.
func (r *SQLiteRepository) AttachTag(ctx context.Context, noteID, tagID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := noteExists(ctx, tx, noteID); err != nil {
			return err
		}
		if err := tagExists(ctx, tx, tagID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`,
			noteID, tagID); err != nil {
			return fmt.Errorf("attaching tag %d to note %d: %w", tagID, noteID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventNoteTagged)
	ev.NoteID = noteID
	ev.TagID = tagID
	r.emit([]events.Event{ev})

	return nil
}

// DetachTag removes a note-tag association. Idempotent set remove.
func (r *SQLiteRepository) DetachTag(ctx context.Context, noteID, tagID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?`,
			noteID, tagID); err != nil {
			return fmt.Errorf("detaching tag %d from note %d: %w", tagID, noteID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventNoteUntagged)
	ev.NoteID = noteID
	ev.TagID = tagID
	r.emit([]events.Event{ev})

	return nil
}

// ListNoteHierarchyEdges returns a full snapshot of note hierarchy edges.
func (r *SQLiteRepository) ListNoteHierarchyEdges(ctx context.Context) ([]NoteHierarchyEdge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT parent_id, child_id, hierarchy_type FROM note_hierarchy ORDER BY child_id, hierarchy_type`)
	if err != nil {
		return nil, fmt.Errorf("listing note hierarchy edges: %w", err)
	}
	defer rows.Close()

	edges := []NoteHierarchyEdge{}
	for rows.Next() {
		var e NoteHierarchyEdge
		if err := rows.Scan(&e.ParentID, &e.ChildID, &e.HierarchyType); err != nil {
			return nil, fmt.Errorf("scanning note hierarchy edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListTagHierarchyEdges returns a full snapshot of tag hierarchy edges.
func (r *SQLiteRepository) ListTagHierarchyEdges(ctx context.Context) ([]TagHierarchyEdge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT parent_id, child_id FROM tag_hierarchy ORDER BY child_id`)
	if err != nil {
		return nil, fmt.Errorf("listing tag hierarchy edges: %w", err)
	}
	defer rows.Close()

	edges := []TagHierarchyEdge{}
	for rows.Next() {
		var e TagHierarchyEdge
		if err := rows.Scan(&e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("scanning tag hierarchy edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListNoteTagAssociations returns a full snapshot of note-tag pairs.
func (r *SQLiteRepository) ListNoteTagAssociations(ctx context.Context) ([]NoteTagAssociation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT note_id, tag_id FROM note_tags ORDER BY note_id, tag_id`)
	if err != nil {
		return nil, fmt.Errorf("listing note tag associations: %w", err)
	}
	defer rows.Close()

	assocs := []NoteTagAssociation{}
	for rows.Next() {
		var a NoteTagAssociation
		if err := rows.Scan(&a.NoteID, &a.TagID); err != nil {
			return nil, fmt.Errorf("scanning note tag association: %w", err)
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

// loadNoteParents reads the child→parent map for one hierarchy type.
func loadNoteParents(ctx context.Context, q querier, hierarchyType string) (map[int64]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT child_id, parent_id FROM note_hierarchy WHERE hierarchy_type = ?`, hierarchyType)
	if err != nil {
		return nil, fmt.Errorf("loading note parents: %w", err)
	}
	defer rows.Close()

	parents := make(map[int64]int64)
	for rows.Next() {
		var child, parent int64
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("scanning note parent: %w", err)
		}
		parents[child] = parent
	}
	return parents, rows.Err()
}

// loadTagParents reads the child→parent map for the tag hierarchy.
func loadTagParents(ctx context.Context, q querier) (map[int64]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT child_id, parent_id FROM tag_hierarchy`)
	if err != nil {
		return nil, fmt.Errorf("loading tag parents: %w", err)
	}
	defer rows.Close()

	parents := make(map[int64]int64)
	for rows.Next() {
		var child, parent int64
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("scanning tag parent: %w", err)
		}
		parents[child] = parent
	}
	return parents, rows.Err()
}
