package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/draftnotes/notegraph/internal/server/events"
)

// timeFormat is the column encoding for timestamps.
const timeFormat = time.RFC3339Nano

// defaultTitle is assigned to notes created without a title.
const defaultTitle = "Untitled"

// SQLiteRepository implements Repository using SQLite.
//
// All mutating operations serialize behind a single writer mutex and run
// inside one SQL transaction, so concurrent readers never observe a
// partially applied structural change. Reads run on WAL snapshots outside
// the lock.
type SQLiteRepository struct {
	db           *sql.DB
	mu           sync.Mutex
	eventEmitter func(events.Event)
}

// NewSQLite creates a new SQLite repository
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	// Apply pragmas for optimal performance
	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	// Create schema
	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return repo, nil
}

// Close closes the SQLite connection
func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// SetEventEmitter sets the callback for emitting mutation events
func (r *SQLiteRepository) SetEventEmitter(emitter func(events.Event)) {
	r.eventEmitter = emitter
}

// emit sends events to the registered emitter. Called only after a
// transaction has committed.
func (r *SQLiteRepository) emit(evs []events.Event) {
	if r.eventEmitter == nil {
		return
	}
	for _, e := range evs {
		r.eventEmitter(e)
	}
}

func newEvent(eventType string) events.Event {
	return events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// withTx runs fn inside the exclusive write transaction. The writer mutex
// keeps exactly one mutating transaction outstanding at a time; rollback
// happens on any error, including context cancellation inside fn.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Entity store: notes ---

// CreateNote inserts a new note and returns it with its assigned id.
// An empty title defaults to "Untitled".
func (r *SQLiteRepository) CreateNote(ctx context.Context, title, content string) (*Note, error) {
	var note *Note
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		n, err := insertNote(ctx, tx, title, content)
		if err != nil {
			return err
		}
		note = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := newEvent(events.EventNoteCreated)
	ev.NoteID = note.ID
	r.emit([]events.Event{ev})

	return note, nil
}

func insertNote(ctx context.Context, tx *sql.Tx, title, content string) (*Note, error) {
	if title == "" {
		title = defaultTitle
	}
	now := time.Now()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO notes (title, content, created_at, modified_at) VALUES (?, ?, ?, ?)`,
		title, content, now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading note id: %w", err)
	}

	return &Note{ID: id, Title: title, Content: content, CreatedAt: now, ModifiedAt: now}, nil
}

// GetNote retrieves a note by id
func (r *SQLiteRepository) GetNote(ctx context.Context, id int64) (*Note, error) {
	return getNote(ctx, r.db, id)
}

func getNote(ctx context.Context, q querier, id int64) (*Note, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, modified_at FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns all notes ordered by id
func (r *SQLiteRepository) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, modified_at FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		n, err := scanNoteRows(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// UpdateNote overwrites the provided fields of a note. Nil fields stay
// unchanged; modified_at refreshes only when a stored value actually
// changes, which keeps re-submitting identical content a no-op.
func (r *SQLiteRepository) UpdateNote(ctx context.Context, id int64, title, content *string) (*Note, error) {
	var note *Note
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		n, _, err := updateNote(ctx, tx, id, title, content)
		if err != nil {
			return err
		}
		note = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := newEvent(events.EventNoteUpdated)
	ev.NoteID = note.ID
	r.emit([]events.Event{ev})

	return note, nil
}

func updateNote(ctx context.Context, tx *sql.Tx, id int64, title, content *string) (*Note, bool, error) {
	current, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	newTitle := current.Title
	if title != nil {
		newTitle = *title
	}
	newContent := current.Content
	if content != nil {
		newContent = *content
	}
	if newTitle == current.Title && newContent == current.Content {
		return current, false, nil
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, modified_at = ? WHERE id = ?`,
		newTitle, newContent, now.Format(timeFormat), id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("updating note %d: %w", id, err)
	}

	current.Title = newTitle
	current.Content = newContent
	current.ModifiedAt = now
	return current, true, nil
}

// DeleteNote removes a note and cascades over every edge referencing it:
// hierarchy edges where it is parent or child, and its tag associations.
func (r *SQLiteRepository) DeleteNote(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := noteExists(ctx, tx, id); err != nil {
			return err
		}
		// Dependent edges go first; the entity record last.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_hierarchy WHERE child_id = ? OR parent_id = ?`, id, id); err != nil {
			return fmt.Errorf("deleting note hierarchy edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
			return fmt.Errorf("deleting note tag associations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting note %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventNoteDeleted)
	ev.NoteID = id
	r.emit([]events.Event{ev})

	return nil
}

// --- Entity store: tags ---

// CreateTag inserts a new tag. Names are unique across tags.
func (r *SQLiteRepository) CreateTag(ctx context.Context, name string) (*Tag, error) {
	var tag *Tag
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE name = ?`, name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking tag name: %w", err)
		}
		if exists > 0 {
			return conflictf("tag name %q already exists", name)
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
		if err != nil {
			return fmt.Errorf("inserting tag: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading tag id: %w", err)
		}
		tag = &Tag{ID: id, Name: name}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := newEvent(events.EventTagCreated)
	ev.TagID = tag.ID
	r.emit([]events.Event{ev})

	return tag, nil
}

// GetTag retrieves a tag by id
func (r *SQLiteRepository) GetTag(ctx context.Context, id int64) (*Tag, error) {
	var tag Tag
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE id = ?`, id).
		Scan(&tag.ID, &tag.Name)
	if err == sql.ErrNoRows {
		return nil, notFoundf("tag %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %d: %w", id, err)
	}
	return &tag, nil
}

// ListTags returns all tags ordered by id
func (r *SQLiteRepository) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTag renames a tag, keeping names unique.
func (r *SQLiteRepository) UpdateTag(ctx context.Context, id int64, name string) (*Tag, error) {
	var tag *Tag
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := tagExists(ctx, tx, id); err != nil {
			return err
		}
		var taken int64
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tags WHERE name = ? AND id != ?`, name, id).Scan(&taken)
		if err != nil {
			return fmt.Errorf("checking tag name: %w", err)
		}
		if taken > 0 {
			return conflictf("tag name %q already exists", name)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tags SET name = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("updating tag %d: %w", id, err)
		}
		tag = &Tag{ID: id, Name: name}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := newEvent(events.EventTagUpdated)
	ev.TagID = id
	r.emit([]events.Event{ev})

	return tag, nil
}

// DeleteTag removes a tag and cascades over its hierarchy edges and note
// associations.
func (r *SQLiteRepository) DeleteTag(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := tagExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tag_hierarchy WHERE child_id = ? OR parent_id = ?`, id, id); err != nil {
			return fmt.Errorf("deleting tag hierarchy edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_tags WHERE tag_id = ?`, id); err != nil {
			return fmt.Errorf("deleting tag associations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting tag %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := newEvent(events.EventTagDeleted)
	ev.TagID = id
	r.emit([]events.Event{ev})

	return nil
}

// --- Scanners and existence checks ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row *sql.Row) (*Note, error) {
	var n Note
	var createdAt, modifiedAt string
	err := row.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &modifiedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: note", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}
	return decodeNoteTimes(&n, createdAt, modifiedAt)
}

func scanNoteRows(rows rowScanner) (*Note, error) {
	var n Note
	var createdAt, modifiedAt string
	if err := rows.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &modifiedAt); err != nil {
		return nil, fmt.Errorf("scanning note: %w", err)
	}
	return decodeNoteTimes(&n, createdAt, modifiedAt)
}

func decodeNoteTimes(n *Note, createdAt, modifiedAt string) (*Note, error) {
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	n.CreatedAt = t
	t, err = time.Parse(timeFormat, modifiedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing modified_at: %w", err)
	}
	n.ModifiedAt = t
	return n, nil
}

func noteExists(ctx context.Context, q querier, id int64) error {
	var count int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("checking note %d: %w", id, err)
	}
	if count == 0 {
		return notFoundf("note %d", id)
	}
	return nil
}

func tagExists(ctx context.Context, q querier, id int64) error {
	var count int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("checking tag %d: %w", id, err)
	}
	if count == 0 {
		return notFoundf("tag %d", id)
	}
	return nil
}
