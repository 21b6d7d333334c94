// Package forest assembles nested trees from flat parent maps and answers
// structural questions about them (cycle checks, ancestor walks).
//
// A forest is described by a child→parent edge map where every child has at
// most one parent. The package is pure: callers load edges from storage,
// and the same primitives serve both incremental edge mutations and bulk
// tree reconciliation, so the two paths cannot diverge.
package forest

import "sort"

// Node is one element of an assembled tree.
type Node[T any] struct {
	ID       int64
	Data     T
	Children []*Node[T]
}

// Build assembles nested trees from items and a child→parent map.
// Children are ordered by ascending ID, as are the returned roots, so the
// result is deterministic for a given input.
//
// IDs in notRoot are excluded from the top level even when they have no
// parent in parents; this covers nodes attached under a different relation
// dimension than the one being projected.
func Build[T any](items map[int64]T, parents map[int64]int64, notRoot map[int64]struct{}) []*Node[T] {
	children := make(map[int64][]int64, len(parents))
	for child, parent := range parents {
		children[parent] = append(children[parent], child)
	}
	for _, ids := range children {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	var build func(id int64) *Node[T]
	build = func(id int64) *Node[T] {
		n := &Node[T]{ID: id, Data: items[id], Children: []*Node[T]{}}
		for _, childID := range children[id] {
			if _, ok := items[childID]; !ok {
				continue
			}
			n.Children = append(n.Children, build(childID))
		}
		return n
	}

	rootIDs := make([]int64, 0, len(items))
	for id := range items {
		if _, hasParent := parents[id]; hasParent {
			continue
		}
		if _, excluded := notRoot[id]; excluded {
			continue
		}
		rootIDs = append(rootIDs, id)
	}
	sort.Slice(rootIDs, func(i, j int) bool { return rootIDs[i] < rootIDs[j] })

	roots := make([]*Node[T], 0, len(rootIDs))
	for _, id := range rootIDs {
		roots = append(roots, build(id))
	}
	return roots
}

// WouldCycle reports whether inserting the edge child→parent would create a
// cycle. It walks ancestors of parent; since every child has a single parent
// and the existing relation is acyclic, the walk terminates in at most
// len(parents) steps.
func WouldCycle(parents map[int64]int64, child, parent int64) bool {
	if child == parent {
		return true
	}
	current := parent
	for steps := 0; steps <= len(parents); steps++ {
		next, ok := parents[current]
		if !ok {
			return false
		}
		if next == child {
			return true
		}
		current = next
	}
	// Unreachable when the input honors the forest invariant; treat an
	// overlong walk as a cycle rather than looping forever.
	return true
}

// Ancestors returns the chain of ancestor IDs of id, nearest parent first.
// The walk stops if the input violates the forest invariant.
func Ancestors(parents map[int64]int64, id int64) []int64 {
	var chain []int64
	current := id
	for steps := 0; steps <= len(parents); steps++ {
		parent, ok := parents[current]
		if !ok {
			return chain
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain
}
