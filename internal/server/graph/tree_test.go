package graph

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProjectNoteTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "A", "root note")
	b, _ := repo.CreateNote(ctx, "B", "child note")
	c, _ := repo.CreateNote(ctx, "C", "another root")
	tag, _ := repo.CreateTag(ctx, "work")

	if err := repo.AttachNoteHierarchy(ctx, b.ID, a.ID, HierarchyBlock); err != nil {
		t.Fatal(err)
	}
	if err := repo.AttachTag(ctx, b.ID, tag.ID); err != nil {
		t.Fatal(err)
	}

	roots, err := repo.ProjectNoteTree(ctx, HierarchyBlock)
	if err != nil {
		t.Fatalf("projecting: %v", err)
	}

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != a.ID || roots[1].ID != c.ID {
		t.Fatalf("roots out of order: %v, %v", roots[0].ID, roots[1].ID)
	}
	if roots[0].HierarchyType != "" {
		t.Errorf("roots carry no hierarchy type, got %q", roots[0].HierarchyType)
	}

	children := roots[0].Children
	if len(children) != 1 || children[0].ID != b.ID {
		t.Fatalf("expected A to contain B, got %v", children)
	}
	if children[0].HierarchyType != HierarchyBlock {
		t.Errorf("child hierarchy type = %q, want %q", children[0].HierarchyType, HierarchyBlock)
	}
	wantTags := []Tag{{ID: tag.ID, Name: "work"}}
	if diff := cmp.Diff(wantTags, children[0].Tags); diff != "" {
		t.Errorf("child tags mismatch (-want +got):\n%s", diff)
	}

	// Leaves render with empty, non-nil collections.
	if roots[1].Children == nil || roots[1].Tags == nil {
		t.Error("leaf collections should be empty slices, not nil")
	}
}

func TestProjectNoteTreeChildrenOrderedByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	second, _ := repo.CreateNote(ctx, "second", "")
	first, _ := repo.CreateNote(ctx, "first", "")

	// Attach in reverse creation order; projection still sorts by id.
	repo.AttachNoteHierarchy(ctx, first.ID, root.ID, HierarchyBlock)
	repo.AttachNoteHierarchy(ctx, second.ID, root.ID, HierarchyBlock)

	roots, err := repo.ProjectNoteTree(ctx, HierarchyBlock)
	if err != nil {
		t.Fatal(err)
	}
	children := roots[0].Children
	if len(children) != 2 || children[0].ID != second.ID || children[1].ID != first.ID {
		t.Errorf("children not ordered by id: %v", children)
	}
}

func TestProjectNoteTreeOtherTypeAttachmentHidesRoot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "A", "")
	b, _ := repo.CreateNote(ctx, "B", "")

	// B hangs under A as a subpage only. In the block projection B is
	// neither a root (it has an incoming edge) nor anyone's child.
	if err := repo.AttachNoteHierarchy(ctx, b.ID, a.ID, HierarchySubpage); err != nil {
		t.Fatal(err)
	}

	blocks, err := repo.ProjectNoteTree(ctx, HierarchyBlock)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].ID != a.ID || len(blocks[0].Children) != 0 {
		t.Errorf("unexpected block projection: %v", blocks)
	}

	subpages, err := repo.ProjectNoteTree(ctx, HierarchySubpage)
	if err != nil {
		t.Fatal(err)
	}
	if len(subpages) != 1 || len(subpages[0].Children) != 1 || subpages[0].Children[0].ID != b.ID {
		t.Errorf("unexpected subpage projection: %v", subpages)
	}
}

func TestProjectNoteTreeInvalidType(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.ProjectNoteTree(context.Background(), "chapter")
	if !IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestProjectTagTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	parent, _ := repo.CreateTag(ctx, "projects")
	child, _ := repo.CreateTag(ctx, "go")
	loose, _ := repo.CreateTag(ctx, "misc")
	note, _ := repo.CreateNote(ctx, "Note", "")

	if err := repo.AttachTagHierarchy(ctx, child.ID, parent.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.AttachTag(ctx, note.ID, child.ID); err != nil {
		t.Fatal(err)
	}

	roots, err := repo.ProjectTagTree(ctx)
	if err != nil {
		t.Fatalf("projecting tag tree: %v", err)
	}

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != parent.ID || roots[1].ID != loose.ID {
		t.Fatalf("roots out of order: %v", roots)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].ID != child.ID {
		t.Fatalf("expected go under projects, got %v", roots[0].Children)
	}

	notes := roots[0].Children[0].Notes
	if len(notes) != 1 || notes[0].ID != note.ID || notes[0].Title != "Note" {
		t.Errorf("expected note summary on tag, got %v", notes)
	}
	if roots[1].Notes == nil || roots[1].Children == nil {
		t.Error("empty collections should not be nil")
	}
}

func TestNotePaths(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "A", "")
	b, _ := repo.CreateNote(ctx, "B", "")
	c, _ := repo.CreateNote(ctx, "C", "")

	repo.AttachNoteHierarchy(ctx, b.ID, a.ID, HierarchyBlock)
	repo.AttachNoteHierarchy(ctx, c.ID, b.ID, HierarchyBlock)

	paths, err := repo.NotePaths(ctx)
	if err != nil {
		t.Fatalf("listing paths: %v", err)
	}
	want := map[int64]string{
		a.ID: "/ A",
		b.ID: "/ A / B",
		c.ID: "/ A / B / C",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	path, err := repo.NotePath(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if path != "/ A / B / C" {
		t.Errorf("path = %q", path)
	}

	if _, err := repo.NotePath(ctx, 999); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestNotePathsIgnoreSubpageEdges(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "A", "")
	b, _ := repo.CreateNote(ctx, "B", "")

	// Paths follow the block hierarchy only.
	repo.AttachNoteHierarchy(ctx, b.ID, a.ID, HierarchySubpage)

	path, err := repo.NotePath(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if path != "/ B" {
		t.Errorf("path = %q, want %q", path, "/ B")
	}
}
