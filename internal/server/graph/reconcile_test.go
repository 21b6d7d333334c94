package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// treeToInputs converts a projection back into a submission, which is what
// a client editing the rendered tree would send.
func treeToInputs(tree []TreeNote) []TreeNoteInput {
	inputs := make([]TreeNoteInput, 0, len(tree))
	for _, n := range tree {
		title := n.Title
		content := n.Content
		inputs = append(inputs, TreeNoteInput{
			ID:            n.ID,
			Title:         &title,
			Content:       &content,
			HierarchyType: n.HierarchyType,
			Children:      treeToInputs(n.Children),
			Tags:          n.Tags,
		})
	}
	return inputs
}

func strptr(s string) *string { return &s }

func TestReconcileCreatesNewNotes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID: root.ID,
		Children: []TreeNoteInput{
			{Title: strptr("first child"), Content: strptr("body 1")},
			{Title: strptr("second child"), HierarchyType: HierarchySubpage},
		},
	}})
	if err != nil {
		t.Fatalf("reconciling: %v", err)
	}

	notes, _ := repo.ListNotes(ctx)
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}

	blocks, err := repo.ProjectNoteTree(ctx, HierarchyBlock)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || len(blocks[0].Children) != 1 {
		t.Fatalf("unexpected block tree: %v", blocks)
	}
	if blocks[0].Children[0].Title != "first child" || blocks[0].Children[0].Content != "body 1" {
		t.Errorf("new child content wrong: %+v", blocks[0].Children[0])
	}

	subpages, err := repo.ProjectNoteTree(ctx, HierarchySubpage)
	if err != nil {
		t.Fatal(err)
	}
	if len(subpages) != 1 || len(subpages[0].Children) != 1 {
		t.Fatalf("unexpected subpage tree: %v", subpages)
	}
	if subpages[0].Children[0].Title != "second child" {
		t.Errorf("subpage child wrong: %+v", subpages[0].Children[0])
	}
}

func TestReconcileRestructures(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	c1, _ := repo.CreateNote(ctx, "c1", "")
	c2, _ := repo.CreateNote(ctx, "c2", "")

	repo.AttachNoteHierarchy(ctx, c1.ID, root.ID, HierarchyBlock)
	repo.AttachNoteHierarchy(ctx, c2.ID, c1.ID, HierarchyBlock)

	// Reverse the chain below root: root -> c2 -> c1.
	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID: root.ID,
		Children: []TreeNoteInput{{
			ID:       c2.ID,
			Children: []TreeNoteInput{{ID: c1.ID}},
		}},
	}})
	if err != nil {
		t.Fatalf("reconciling: %v", err)
	}

	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	want := []NoteHierarchyEdge{
		{ParentID: c2.ID, ChildID: c1.ID, HierarchyType: HierarchyBlock},
		{ParentID: root.ID, ChildID: c2.ID, HierarchyType: HierarchyBlock},
	}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileUpdatesContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, _ := repo.CreateNote(ctx, "old title", "old content")

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:    n.ID,
		Title: strptr("new title"),
	}})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := repo.GetNote(ctx, n.ID)
	if got.Title != "new title" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != "old content" {
		t.Errorf("content should be untouched, got %q", got.Content)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "top")
	child, _ := repo.CreateNote(ctx, "child", "body")
	tag, _ := repo.CreateTag(ctx, "keep")

	repo.AttachNoteHierarchy(ctx, child.ID, root.ID, HierarchyBlock)
	repo.AttachTag(ctx, child.ID, tag.ID)

	tree, err := repo.ProjectNoteTree(ctx, HierarchyBlock)
	if err != nil {
		t.Fatal(err)
	}

	before := takeSnapshot(t, repo)
	if err := repo.ReconcileNoteTree(ctx, treeToInputs(tree)); err != nil {
		t.Fatalf("reconciling projected tree: %v", err)
	}
	after := takeSnapshot(t, repo)

	// Resubmitting the rendered tree must change nothing, including
	// modification timestamps.
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("round trip changed stored state:\n%s", diff)
	}
}

func TestReconcilePromotesRoot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "a", "")
	b, _ := repo.CreateNote(ctx, "b", "")
	n, _ := repo.CreateNote(ctx, "n", "")

	repo.AttachNoteHierarchy(ctx, n.ID, a.ID, HierarchyBlock)
	repo.AttachNoteHierarchy(ctx, n.ID, b.ID, HierarchySubpage)

	// Submitting n at the top level strips every parent edge it has.
	if err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{ID: n.ID}}); err != nil {
		t.Fatal(err)
	}

	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	if len(edges) != 0 {
		t.Errorf("expected no edges, got %v", edges)
	}
}

func TestReconcilePreservesUntouchedTypeEdges(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateNote(ctx, "a", "")
	b, _ := repo.CreateNote(ctx, "b", "")
	n, _ := repo.CreateNote(ctx, "n", "")

	repo.AttachNoteHierarchy(ctx, n.ID, a.ID, HierarchySubpage)

	// A block-only submission moves n under b as a block child; the
	// subpage edge under a is outside the submission's scope and stays.
	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:       b.ID,
		Children: []TreeNoteInput{{ID: n.ID, HierarchyType: HierarchyBlock}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	want := []NoteHierarchyEdge{
		{ParentID: b.ID, ChildID: n.ID, HierarchyType: HierarchyBlock},
		{ParentID: a.ID, ChildID: n.ID, HierarchyType: HierarchySubpage},
	}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileNeverDeletesUnmentionedNotes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	kept, _ := repo.CreateNote(ctx, "kept", "")
	repo.AttachNoteHierarchy(ctx, kept.ID, root.ID, HierarchyBlock)

	// A submission mentioning only root rewrites root's own edges but
	// leaves the unmentioned child and its edge alone.
	if err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{ID: root.ID}}); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.GetNote(ctx, kept.ID); err != nil {
		t.Errorf("unmentioned note should survive, got %v", err)
	}
	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	want := []NoteHierarchyEdge{{ParentID: root.ID, ChildID: kept.ID, HierarchyType: HierarchyBlock}}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileTagSets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, _ := repo.CreateNote(ctx, "n", "")
	x, _ := repo.CreateTag(ctx, "x")
	y, _ := repo.CreateTag(ctx, "y")
	z, _ := repo.CreateTag(ctx, "z")

	repo.AttachTag(ctx, n.ID, x.ID)
	repo.AttachTag(ctx, n.ID, y.ID)

	// {x, y} becomes {y, z}.
	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:   n.ID,
		Tags: []Tag{{ID: y.ID}, {ID: z.ID}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	assocs, _ := repo.ListNoteTagAssociations(ctx)
	want := []NoteTagAssociation{
		{NoteID: n.ID, TagID: y.ID},
		{NoteID: n.ID, TagID: z.ID},
	}
	if diff := cmp.Diff(want, assocs); diff != "" {
		t.Errorf("associations mismatch (-want +got):\n%s", diff)
	}

	// An empty tag list clears the set.
	if err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{ID: n.ID}}); err != nil {
		t.Fatal(err)
	}
	assocs, _ = repo.ListNoteTagAssociations(ctx)
	if len(assocs) != 0 {
		t.Errorf("expected cleared tag set, got %v", assocs)
	}
}

func TestReconcileRejectsDuplicateIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	child, _ := repo.CreateNote(ctx, "child", "")
	repo.AttachNoteHierarchy(ctx, child.ID, root.ID, HierarchyBlock)

	before := takeSnapshot(t, repo)

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{
		{ID: root.ID, Children: []TreeNoteInput{{ID: child.ID}}},
		{ID: child.ID},
	})
	if !IsInvalidTree(err) {
		t.Fatalf("expected invalid tree, got %v", err)
	}
	if diff := cmp.Diff(before, takeSnapshot(t, repo)); diff != "" {
		t.Errorf("rejected submission changed state:\n%s", diff)
	}
}

func TestReconcileRejectsNewNoteWithChildren(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	existing, _ := repo.CreateNote(ctx, "existing", "")

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		Title:    strptr("brand new"),
		Children: []TreeNoteInput{{ID: existing.ID}},
	}})
	if !IsInvalidTree(err) {
		t.Errorf("expected invalid tree, got %v", err)
	}
}

func TestReconcileRejectsUnknownReferences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	before := takeSnapshot(t, repo)

	// Unknown note id anywhere in the submission.
	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:       root.ID,
		Children: []TreeNoteInput{{ID: 999}},
	}})
	if !IsNotFound(err) {
		t.Fatalf("expected not found for unknown note, got %v", err)
	}

	// Unknown tag id, with otherwise valid structure.
	err = repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:   root.ID,
		Tags: []Tag{{ID: 999}},
	}})
	if !IsNotFound(err) {
		t.Fatalf("expected not found for unknown tag, got %v", err)
	}

	if diff := cmp.Diff(before, takeSnapshot(t, repo)); diff != "" {
		t.Errorf("rejected submissions changed state:\n%s", diff)
	}
}

func TestReconcileRejectsUnknownHierarchyType(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	child, _ := repo.CreateNote(ctx, "child", "")

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:       root.ID,
		Children: []TreeNoteInput{{ID: child.ID, HierarchyType: "chapter"}},
	}})
	if !IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestReconcileDefaultsChildEdgesToBlock(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	child, _ := repo.CreateNote(ctx, "child", "")

	err := repo.ReconcileNoteTree(ctx, []TreeNoteInput{{
		ID:       root.ID,
		Children: []TreeNoteInput{{ID: child.ID}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	want := []NoteHierarchyEdge{{ParentID: root.ID, ChildID: child.ID, HierarchyType: HierarchyBlock}}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentReconcilesSerialize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root, _ := repo.CreateNote(ctx, "root", "")
	a, _ := repo.CreateNote(ctx, "a", "")
	b, _ := repo.CreateNote(ctx, "b", "")

	// Two overlapping submissions race; both must succeed and the result
	// must equal one of them applied last.
	subA := []TreeNoteInput{{ID: root.ID, Children: []TreeNoteInput{{ID: a.ID}, {ID: b.ID}}}}
	subB := []TreeNoteInput{{ID: root.ID, Children: []TreeNoteInput{{ID: a.ID, Children: []TreeNoteInput{{ID: b.ID}}}}}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = repo.ReconcileNoteTree(ctx, subA) }()
	go func() { defer wg.Done(); errs[1] = repo.ReconcileNoteTree(ctx, subB) }()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("submission %d failed: %v", i, err)
		}
	}

	edges, _ := repo.ListNoteHierarchyEdges(ctx)
	flatWant := []NoteHierarchyEdge{
		{ParentID: root.ID, ChildID: a.ID, HierarchyType: HierarchyBlock},
		{ParentID: root.ID, ChildID: b.ID, HierarchyType: HierarchyBlock},
	}
	nestedWant := []NoteHierarchyEdge{
		{ParentID: root.ID, ChildID: a.ID, HierarchyType: HierarchyBlock},
		{ParentID: a.ID, ChildID: b.ID, HierarchyType: HierarchyBlock},
	}
	if cmp.Diff(flatWant, edges) != "" && cmp.Diff(nestedWant, edges) != "" {
		t.Errorf("final edges match neither submission: %v", edges)
	}
}
