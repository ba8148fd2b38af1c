// Package graph flattens a merged node.Node tree into the mapping from
// canonical identifier to config item that the resolver walks (spec
// §4.4), expanding `%` macros along the way.
package graph

import (
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/node"
)

// State is a config item's resolution state (spec §3).
type State int

const (
	Unresolved State = iota
	InProgress
	Resolved
	Failed
)

// Item is the unit stored in the graph: the canonical identifier, the
// raw node produced by the merger (post macro-expansion), and
// resolution bookkeeping the resolver owns. Deps is nil until the
// resolver has scanned Raw for markers at least once; a legitimately
// empty dependency set is represented as a non-nil empty slice so the
// two states stay distinguishable.
type Item struct {
	ID    ident.Identifier
	Raw   *node.Node
	State State
	Value any
	Deps  []string
}

// Graph is a mapping from canonical identifier text to Item, closed
// under descent (spec invariant I1): every interior and leaf node of
// the tree Build walked has an entry, keyed by ident.Identifier.String().
type Graph struct {
	Items map[string]*Item
	Root  *node.Node
}

// Build flattens root (already merged) into a Graph, expanding every
// `%` macro it finds via loadFile for file-qualified targets. Each
// interior and leaf node of the macro-expanded tree becomes one Item;
// an Opaque node created by macro splicing becomes exactly one Item and
// is never individually descended into, per node.Traverse's contract.
func Build(root *node.Node, loadFile FileLoader) (*Graph, error) {
	expanded, err := expandMacros(root, loadFile)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*Item)
	err = node.Traverse(expanded, func(id ident.Identifier, n *node.Node) error {
		items[id.String()] = &Item{ID: id, Raw: n, State: Unresolved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Graph{Items: items, Root: expanded}, nil
}

// Get returns the raw node stored at idText, per spec §4.4's `get(id)`.
func (g *Graph) Get(idText string) (*node.Node, bool) {
	item, ok := g.Items[idText]
	if !ok {
		return nil, false
	}
	return item.Raw, true
}

// Has reports whether idText names an item in the graph.
func (g *Graph) Has(idText string) bool {
	_, ok := g.Items[idText]
	return ok
}

// Keys returns every identifier in the graph, unordered; callers
// wanting a section-grouped listing sort/group this slice themselves
// (spec §4.4 "keys() grouped by section for listing" is a presentation
// concern layered on top, not a graph responsibility).
func (g *Graph) Keys() []string {
	out := make([]string, 0, len(g.Items))
	for k := range g.Items {
		out = append(out, k)
	}
	return out
}

// Set replaces the raw subtree at id with value, rebuilding the
// descendant items under it (spec §4.4's `set(id, value)`). Callers are
// responsible for invalidating any resolved cache entries that
// transitively depended on id — the graph itself only tracks raw
// structure.
func (g *Graph) Set(id ident.Identifier, value *node.Node) error {
	g.pruneSubtree(id.String())
	return node.Traverse(value, func(relID ident.Identifier, n *node.Node) error {
		abs, err := ident.Join(id, relID)
		if err != nil {
			return err
		}
		g.Items[abs.String()] = &Item{ID: abs, Raw: n, State: Unresolved}
		return nil
	})
}

func (g *Graph) pruneSubtree(prefix string) {
	sepLen := len(ident.Separator)
	for k := range g.Items {
		if k == prefix {
			delete(g.Items, k)
			continue
		}
		if len(k) >= len(prefix)+sepLen && k[:len(prefix)] == prefix && k[len(prefix):len(prefix)+sepLen] == ident.Separator {
			delete(g.Items, k)
		}
	}
}
