package graph

// SQLite schema DDL constants

const schemaNotes = `
CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL
)`

const schemaTags = `
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
)`

// One parent per (child, hierarchy_type); endpoints reference live notes.
const schemaNoteHierarchy = `
CREATE TABLE IF NOT EXISTS note_hierarchy (
    child_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    parent_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    hierarchy_type TEXT NOT NULL CHECK (hierarchy_type IN ('block', 'subpage')),
    UNIQUE(child_id, hierarchy_type)
)`

const schemaTagHierarchy = `
CREATE TABLE IF NOT EXISTS tag_hierarchy (
    child_id INTEGER NOT NULL UNIQUE REFERENCES tags(id) ON DELETE CASCADE,
    parent_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE
)`

const schemaNoteTags = `
CREATE TABLE IF NOT EXISTS note_tags (
    note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (note_id, tag_id)
)`

// Index definitions
const indexNoteHierarchyParent = `CREATE INDEX IF NOT EXISTS idx_note_hierarchy_parent ON note_hierarchy(parent_id)`
const indexNoteHierarchyChild = `CREATE INDEX IF NOT EXISTS idx_note_hierarchy_child ON note_hierarchy(child_id)`
const indexTagHierarchyParent = `CREATE INDEX IF NOT EXISTS idx_tag_hierarchy_parent ON tag_hierarchy(parent_id)`
const indexNoteTagsTag = `CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag_id)`

// SQLite pragmas for optimal performance
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaNotes,
		schemaTags,
		schemaNoteHierarchy,
		schemaTagHierarchy,
		schemaNoteTags,
		indexNoteHierarchyParent,
		indexNoteHierarchyChild,
		indexTagHierarchyParent,
		indexNoteTagsTag,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
