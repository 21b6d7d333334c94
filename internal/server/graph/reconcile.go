package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/draftnotes/notegraph/internal/server/events"
)

// flatNode is one entry of a flattened tree submission. parentIdx indexes
// the flattened slice (-1 for roots) so parents are always resolved before
// their children. id holds the resolved note id once identities are known.
type flatNode struct {
	input         *TreeNoteInput
	parentIdx     int
	hierarchyType string
	id            int64
}

// ReconcileNoteTree rewrites the stored graph to match a desired forest of
// notes, as one atomic transaction:
//
//  1. flatten the submission into per-node parent assignments
//  2. validate shape (duplicate ids, new nodes carrying children)
//  3. create notes for nodes submitted without an id
//  4. diff desired parent edges against stored edges, restricted to the
//     hierarchy types the submission uses
//  5. apply removals, then additions through the same edge primitives as
//     the incremental API, so cycle checks apply uniformly
//  6. overwrite title/content where the submission provides them
//  7. replace each mentioned note's tag set with the submitted set
//
// Any failure at any step rolls the whole transaction back. Notes absent
// from the submission are never deleted: a partial tree only rewrites what
// it mentions.
func (r *SQLiteRepository) ReconcileNoteTree(ctx context.Context, desired []TreeNoteInput) error {
	flat, err := flattenForest(desired)
	if err != nil {
		return err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if err := validateReferences(ctx, tx, flat); err != nil {
			return err
		}
		if err := resolveIdentities(ctx, tx, flat); err != nil {
			return err
		}
		if err := reconcileEdges(ctx, tx, flat); err != nil {
			return err
		}
		if err := reconcileContent(ctx, tx, flat); err != nil {
			return err
		}
		return reconcileTags(ctx, tx, flat)
	})
	if err != nil {
		return err
	}

	r.emit([]events.Event{newEvent(events.EventTreeReconciled)})
	return nil
}

// flattenForest turns the nested submission into a parent-indexed slice and
// performs the shape validation that needs no storage access.
func flattenForest(desired []TreeNoteInput) ([]*flatNode, error) {
	var flat []*flatNode
	seen := make(map[int64]struct{})

	var walk func(node *TreeNoteInput, parentIdx int) error
	walk = func(node *TreeNoteInput, parentIdx int) error {
		hierarchyType := ""
		if parentIdx >= 0 {
			hierarchyType = node.HierarchyType
			if hierarchyType == "" {
				hierarchyType = HierarchyBlock
			}
			if !ValidHierarchyType(hierarchyType) {
				return invalidInputf("unknown hierarchy type %q", node.HierarchyType)
			}
		}

		if node.ID > 0 {
			if _, dup := seen[node.ID]; dup {
				return invalidTreef("note %d appears more than once", node.ID)
			}
			seen[node.ID] = struct{}{}
		} else if len(node.Children) > 0 {
			// New notes are always leaves within one submission.
			return invalidTreef("new note cannot carry children")
		}

		idx := len(flat)
		flat = append(flat, &flatNode{
			input:         node,
			parentIdx:     parentIdx,
			hierarchyType: hierarchyType,
		})

		for i := range node.Children {
			if err := walk(&node.Children[i], idx); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range desired {
		if err := walk(&desired[i], -1); err != nil {
			return nil, err
		}
	}
	return flat, nil
}

// validateReferences checks that every existing note id and every tag id in
// the submission refers to a stored entity, before anything mutates.
func validateReferences(ctx context.Context, tx *sql.Tx, flat []*flatNode) error {
	checkedTags := make(map[int64]struct{})
	for _, fn := range flat {
		if fn.input.ID > 0 {
			if err := noteExists(ctx, tx, fn.input.ID); err != nil {
				return err
			}
		}
		for _, tag := range fn.input.Tags {
			if _, done := checkedTags[tag.ID]; done {
				continue
			}
			if err := tagExists(ctx, tx, tag.ID); err != nil {
				return err
			}
			checkedTags[tag.ID] = struct{}{}
		}
	}
	return nil
}

// resolveIdentities assigns a stored id to every flattened node, creating
// notes for the ones submitted without one.
func resolveIdentities(ctx context.Context, tx *sql.Tx, flat []*flatNode) error {
	for _, fn := range flat {
		if fn.input.ID > 0 {
			fn.id = fn.input.ID
			continue
		}
		title, content := "", ""
		if fn.input.Title != nil {
			title = *fn.input.Title
		}
		if fn.input.Content != nil {
			content = *fn.input.Content
		}
		note, err := insertNote(ctx, tx, title, content)
		if err != nil {
			return err
		}
		fn.id = note.ID
	}
	return nil
}

// reconcileEdges computes and applies the minimal edge diff. Nodes
// submitted as roots lose every parent edge; nodes submitted as children
// end up with exactly their submitted parent within the hierarchy types the
// submission uses, while edges of untouched types survive.
func reconcileEdges(ctx context.Context, tx *sql.Tx, flat []*flatNode) error {
	typesPresent := make(map[string]struct{})
	for _, fn := range flat {
		if fn.parentIdx >= 0 {
			typesPresent[fn.hierarchyType] = struct{}{}
		}
	}

	parentsByType := make(map[string]map[int64]int64)
	for _, t := range []string{HierarchyBlock, HierarchySubpage} {
		parents, err := loadNoteParents(ctx, tx, t)
		if err != nil {
			return err
		}
		parentsByType[t] = parents
	}

	// Desired edges, keyed by type then child.
	want := make(map[string]map[int64]int64)
	for _, fn := range flat {
		if fn.parentIdx < 0 {
			continue
		}
		if want[fn.hierarchyType] == nil {
			want[fn.hierarchyType] = make(map[int64]int64)
		}
		want[fn.hierarchyType][fn.id] = flat[fn.parentIdx].id
	}

	// Removals first so moves cannot trip spurious cycle checks.
	for _, fn := range flat {
		if fn.parentIdx < 0 {
			// Submitted as root: no parent edge of any type survives.
			if err := detachNoteEdges(ctx, tx, fn.id); err != nil {
				return err
			}
			for _, parents := range parentsByType {
				delete(parents, fn.id)
			}
			continue
		}
		for t := range typesPresent {
			cur, ok := parentsByType[t][fn.id]
			if !ok {
				continue
			}
			if wantParent, wanted := want[t][fn.id]; wanted && wantParent == cur {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM note_hierarchy WHERE child_id = ? AND hierarchy_type = ?`,
				fn.id, t); err != nil {
				return fmt.Errorf("removing note hierarchy edge: %w", err)
			}
			delete(parentsByType[t], fn.id)
		}
	}

	// Additions go through the same primitive as the incremental attach
	// API; a cycle anywhere aborts the whole transaction.
	for _, fn := range flat {
		if fn.parentIdx < 0 {
			continue
		}
		parentID := flat[fn.parentIdx].id
		if cur, ok := parentsByType[fn.hierarchyType][fn.id]; ok && cur == parentID {
			continue
		}
		if err := attachNoteEdge(ctx, tx, fn.id, parentID, fn.hierarchyType); err != nil {
			return err
		}
		parentsByType[fn.hierarchyType][fn.id] = parentID
	}
	return nil
}

// reconcileContent overwrites title/content on existing notes where the
// submission provides them. Unchanged values do not refresh modified_at,
// so resubmitting the current tree is a no-op.
func reconcileContent(ctx context.Context, tx *sql.Tx, flat []*flatNode) error {
	for _, fn := range flat {
		if fn.input.ID <= 0 {
			// Created this transaction with its submitted values.
			continue
		}
		if fn.input.Title == nil && fn.input.Content == nil {
			continue
		}
		if _, _, err := updateNote(ctx, tx, fn.id, fn.input.Title, fn.input.Content); err != nil {
			return err
		}
	}
	return nil
}

// reconcileTags replaces each mentioned note's tag set with exactly the
// submitted set: missing associations are added, extra ones removed.
func reconcileTags(ctx context.Context, tx *sql.Tx, flat []*flatNode) error {
	for _, fn := range flat {
		desired := make(map[int64]struct{}, len(fn.input.Tags))
		for _, tag := range fn.input.Tags {
			desired[tag.ID] = struct{}{}
		}

		current := make(map[int64]struct{})
		rows, err := tx.QueryContext(ctx,
			`SELECT tag_id FROM note_tags WHERE note_id = ?`, fn.id)
		if err != nil {
			return fmt.Errorf("loading tags for note %d: %w", fn.id, err)
		}
		for rows.Next() {
			var tagID int64
			if err := rows.Scan(&tagID); err != nil {
				rows.Close()
				return fmt.Errorf("scanning tag id: %w", err)
			}
			current[tagID] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for tagID := range desired {
			if _, ok := current[tagID]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)`, fn.id, tagID); err != nil {
				return fmt.Errorf("tagging note %d with %d: %w", fn.id, tagID, err)
			}
		}
		for tagID := range current {
			if _, ok := desired[tagID]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?`, fn.id, tagID); err != nil {
				return fmt.Errorf("untagging note %d from %d: %w", fn.id, tagID, err)
			}
		}
	}
	return nil
}
