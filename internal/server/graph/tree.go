package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/draftnotes/notegraph/pkg/forest"
)

// Tree projection. Projections are pure reads over one snapshot; they run
// in their own read transaction and never take the writer lock.

// ProjectNoteTree renders the stored note graph as nested trees for one
// hierarchy type. Roots are notes with no incoming hierarchy edge of any
// type; children are ordered by id and carry their tag sets.
func (r *SQLiteRepository) ProjectNoteTree(ctx context.Context, hierarchyType string) ([]TreeNote, error) {
	if !ValidHierarchyType(hierarchyType) {
		return nil, invalidInputf("unknown hierarchy type %q", hierarchyType)
	}

	var roots []TreeNote
	err := r.readTx(ctx, func(tx *sql.Tx) error {
		notes, err := loadNoteMap(ctx, tx)
		if err != nil {
			return err
		}
		parents, err := loadNoteParents(ctx, tx, hierarchyType)
		if err != nil {
			return err
		}
		attached, err := loadAttachedNotes(ctx, tx)
		if err != nil {
			return err
		}
		noteTags, err := loadNoteTagMap(ctx, tx)
		if err != nil {
			return err
		}

		var convert func(n *forest.Node[Note], root bool) TreeNote
		convert = func(n *forest.Node[Note], root bool) TreeNote {
			t := TreeNote{
				ID:         n.ID,
				Title:      n.Data.Title,
				Content:    n.Data.Content,
				CreatedAt:  n.Data.CreatedAt,
				ModifiedAt: n.Data.ModifiedAt,
				Children:   []TreeNote{},
				Tags:       noteTags[n.ID],
			}
			if t.Tags == nil {
				t.Tags = []Tag{}
			}
			if !root {
				t.HierarchyType = hierarchyType
			}
			for _, child := range n.Children {
				t.Children = append(t.Children, convert(child, false))
			}
			return t
		}

		roots = []TreeNote{}
		for _, n := range forest.Build(notes, parents, attached) {
			roots = append(roots, convert(n, true))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// ProjectTagTree renders the tag hierarchy as nested trees, embedding at
// each tag the summaries of notes carrying it.
func (r *SQLiteRepository) ProjectTagTree(ctx context.Context) ([]TreeTagWithNotes, error) {
	var roots []TreeTagWithNotes
	err := r.readTx(ctx, func(tx *sql.Tx) error {
		tags, err := loadTagMap(ctx, tx)
		if err != nil {
			return err
		}
		parents, err := loadTagParents(ctx, tx)
		if err != nil {
			return err
		}
		tagNotes, err := loadTagNoteMap(ctx, tx)
		if err != nil {
			return err
		}

		var convert func(n *forest.Node[Tag]) TreeTagWithNotes
		convert = func(n *forest.Node[Tag]) TreeTagWithNotes {
			t := TreeTagWithNotes{
				ID:       n.ID,
				Name:     n.Data.Name,
				Children: []TreeTagWithNotes{},
				Notes:    tagNotes[n.ID],
			}
			if t.Notes == nil {
				t.Notes = []NoteMeta{}
			}
			for _, child := range n.Children {
				t.Children = append(t.Children, convert(child))
			}
			return t
		}

		roots = []TreeTagWithNotes{}
		for _, n := range forest.Build(tags, parents, nil) {
			roots = append(roots, convert(n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// NotePaths returns the hierarchy path of every note, keyed by id. Paths
// follow the "block" hierarchy and join titles root-first, e.g.
// "/ Projects / Todo".
func (r *SQLiteRepository) NotePaths(ctx context.Context) (map[int64]string, error) {
	var paths map[int64]string
	err := r.readTx(ctx, func(tx *sql.Tx) error {
		titles, err := loadNoteTitles(ctx, tx)
		if err != nil {
			return err
		}
		parents, err := loadNoteParents(ctx, tx, HierarchyBlock)
		if err != nil {
			return err
		}

		paths = make(map[int64]string, len(titles))
		for id := range titles {
			paths[id] = buildPath(id, titles, parents)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// NotePath returns the hierarchy path of a single note.
func (r *SQLiteRepository) NotePath(ctx context.Context, id int64) (string, error) {
	var path string
	err := r.readTx(ctx, func(tx *sql.Tx) error {
		if err := noteExists(ctx, tx, id); err != nil {
			return err
		}
		titles, err := loadNoteTitles(ctx, tx)
		if err != nil {
			return err
		}
		parents, err := loadNoteParents(ctx, tx, HierarchyBlock)
		if err != nil {
			return err
		}
		path = buildPath(id, titles, parents)
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func buildPath(id int64, titles map[int64]string, parents map[int64]int64) string {
	chain := forest.Ancestors(parents, id)
	components := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		components = append(components, titles[chain[i]])
	}
	components = append(components, titles[id])
	return "/ " + strings.Join(components, " / ")
}

// readTx runs fn inside a transaction used only for reads, giving the
// projection a consistent snapshot while writers proceed.
func (r *SQLiteRepository) readTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Snapshot loaders ---

func loadNoteMap(ctx context.Context, q querier) (map[int64]Note, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, content, created_at, modified_at FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}
	defer rows.Close()

	notes := make(map[int64]Note)
	for rows.Next() {
		n, err := scanNoteRows(rows)
		if err != nil {
			return nil, err
		}
		notes[n.ID] = *n
	}
	return notes, rows.Err()
}

func loadNoteTitles(ctx context.Context, q querier) (map[int64]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, title FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("loading note titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[int64]string)
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scanning note title: %w", err)
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func loadTagMap(ctx context.Context, q querier) (map[int64]Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[int64]Tag)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags[t.ID] = t
	}
	return tags, rows.Err()
}

// loadAttachedNotes returns the set of notes that are a child under any
// hierarchy type. Those never appear at the top level of a projection.
func loadAttachedNotes(ctx context.Context, q querier) (map[int64]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT child_id FROM note_hierarchy`)
	if err != nil {
		return nil, fmt.Errorf("loading attached notes: %w", err)
	}
	defer rows.Close()

	attached := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning attached note: %w", err)
		}
		attached[id] = struct{}{}
	}
	return attached, rows.Err()
}

func loadNoteTagMap(ctx context.Context, q querier) (map[int64][]Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT nt.note_id, t.id, t.name
		FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		ORDER BY nt.note_id, t.id`)
	if err != nil {
		return nil, fmt.Errorf("loading note tags: %w", err)
	}
	defer rows.Close()

	noteTags := make(map[int64][]Tag)
	for rows.Next() {
		var noteID int64
		var t Tag
		if err := rows.Scan(&noteID, &t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning note tag: %w", err)
		}
		noteTags[noteID] = append(noteTags[noteID], t)
	}
	return noteTags, rows.Err()
}

func loadTagNoteMap(ctx context.Context, q querier) (map[int64][]NoteMeta, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT nt.tag_id, n.id, n.title, n.created_at, n.modified_at
		FROM note_tags nt JOIN notes n ON n.id = nt.note_id
		ORDER BY nt.tag_id, n.id`)
	if err != nil {
		return nil, fmt.Errorf("loading tag notes: %w", err)
	}
	defer rows.Close()

	tagNotes := make(map[int64][]NoteMeta)
	for rows.Next() {
		var tagID int64
		var m NoteMeta
		var createdAt, modifiedAt string
		if err := rows.Scan(&tagID, &m.ID, &m.Title, &createdAt, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scanning tag note: %w", err)
		}
		n := Note{ID: m.ID, Title: m.Title}
		if _, err := decodeNoteTimes(&n, createdAt, modifiedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = n.CreatedAt
		m.ModifiedAt = n.ModifiedAt
		tagNotes[tagID] = append(tagNotes[tagID], m)
	}
	return tagNotes, rows.Err()
}
