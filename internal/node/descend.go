package node

import (
	"fmt"

	"github.com/project-lighter/sparkwheel/internal/ident"
)

// ErrNotFound is returned (wrapped) by Descend when a segment cannot
// be followed.
type ErrNotFound struct {
	Identifier string
	Segment    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("node: %q not found while descending into %q", e.Segment, e.Identifier)
}

// Descend follows id's segments from root, per spec §4.1: string
// segments require a mapping, integer segments require a sequence; the
// tie-break for a numeric-looking segment is decided by the node's own
// shape, not the segment's — a numeric-looking segment against a
// mapping is a string key, against a sequence it is an index.
func Descend(root *Node, id ident.Identifier) (*Node, error) {
	if id.IsRelative() {
		return nil, fmt.Errorf("node: Descend requires an absolute identifier, got %q", id.String())
	}
	cur := root
	for _, seg := range id.Segments {
		switch cur.Kind {
		case KindMapping:
			child, ok := cur.Map[seg.Raw]
			if !ok {
				return nil, &ErrNotFound{Identifier: id.String(), Segment: seg.Raw}
			}
			cur = child
		case KindSequence:
			if !seg.IsNumeric || seg.Index < 0 || seg.Index >= len(cur.Seq) {
				return nil, &ErrNotFound{Identifier: id.String(), Segment: seg.Raw}
			}
			cur = cur.Seq[seg.Index]
		default:
			return nil, &ErrNotFound{Identifier: id.String(), Segment: seg.Raw}
		}
	}
	return cur, nil
}

// Visitor is called once per interior and leaf node Traverse visits.
type Visitor func(id ident.Identifier, n *Node) error

// Traverse yields (identifier, node) for every node in the tree in
// depth-first order, including interior mapping/sequence nodes
// themselves (spec §4.1). Descent stops at an Opaque node: its
// children are not individually visited, matching how macro-spliced
// subtrees are treated as a single leaf item by the graph builder.
func Traverse(root *Node, visit Visitor) error {
	return traverse(ident.Root, root, visit)
}

func traverse(id ident.Identifier, n *Node, visit Visitor) error {
	if err := visit(id, n); err != nil {
		return err
	}
	if n.Opaque {
		return nil
	}
	switch n.Kind {
	case KindMapping:
		for _, k := range n.Keys {
			childID := id.Child(ident.NewSegment(k))
			if err := traverse(childID, n.Map[k], visit); err != nil {
				return err
			}
		}
	case KindSequence:
		for i, c := range n.Seq {
			childID := id.Child(ident.NewSegment(fmt.Sprintf("%d", i)))
			if err := traverse(childID, c, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
