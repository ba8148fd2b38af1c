// Package node defines sparkwheel's Node tree — the in-memory shape of
// a parsed YAML document — plus the YAML adapter and the descend/
// traverse operations of the path algebra that act on it.
package node

import "fmt"

// Kind discriminates the three node shapes of spec §3.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Op is the merge operator a mapping key was written with (spec §4.2).
type Op int

const (
	OpNone Op = iota
	OpReplace
	OpDelete
)

// Node is a tree value: scalar, mapping, or sequence.
//
// Mapping children are stored both as an ordered Keys slice (insertion
// order, significant only for human inspection per spec §3) and a Map
// lookup. Ops records the merge operator each key was last written
// with; a merged tree has every Op reset to OpNone once the operator
// has been interpreted.
//
// Opaque marks the root of a subtree spliced in by macro substitution
// (spec §4.4). Graph construction treats an Opaque node as a leaf: it
// creates exactly one item there and never descends into its children,
// and the resolver returns its plain Go conversion unconditionally,
// without scanning it for markers or treating it as an instantiation
// site, even if it happens to contain directive keys. This is how
// scenario 8 of spec §8 ("macro copy before resolution") is satisfied:
// a macro hands back *data*, never an instance.
type Node struct {
	Kind   Kind
	Scalar any

	Keys []string
	Ops  map[string]Op
	Map  map[string]*Node

	Seq []*Node

	Opaque bool
}

// NewScalar builds a scalar node.
func NewScalar(v any) *Node {
	return &Node{Kind: KindScalar, Scalar: v}
}

// NewMapping builds an empty mapping node.
func NewMapping() *Node {
	return &Node{Kind: KindMapping, Ops: map[string]Op{}, Map: map[string]*Node{}}
}

// NewSequence builds a sequence node from the given children.
func NewSequence(items ...*Node) *Node {
	return &Node{Kind: KindSequence, Seq: items}
}

// Set inserts or overwrites a mapping child, recording op and
// preserving first-seen key order.
func (n *Node) Set(key string, op Op, child *Node) {
	if n.Kind != KindMapping {
		panic("node: Set called on a non-mapping node")
	}
	if _, exists := n.Map[key]; !exists {
		n.Keys = append(n.Keys, key)
	}
	n.Map[key] = child
	n.Ops[key] = op
}

// Delete removes a mapping child entirely.
func (n *Node) Delete(key string) {
	if n.Kind != KindMapping {
		panic("node: Delete called on a non-mapping node")
	}
	if _, exists := n.Map[key]; !exists {
		return
	}
	delete(n.Map, key)
	delete(n.Ops, key)
	for i, k := range n.Keys {
		if k == key {
			n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
			break
		}
	}
}

// Get returns the mapping child at key, if any.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind != KindMapping {
		return nil, false
	}
	c, ok := n.Map[key]
	return c, ok
}

// ParseKeyPrefix splits a raw mapping key into its operator prefix (if
// any) and the clean key name, per spec §4.2's `=K`/`~K` table.
func ParseKeyPrefix(raw string) (clean string, op Op) {
	if len(raw) == 0 {
		return raw, OpNone
	}
	switch raw[0] {
	case '=':
		return raw[1:], OpReplace
	case '~':
		return raw[1:], OpDelete
	default:
		return raw, OpNone
	}
}

// EncodeKeyPrefix is ParseKeyPrefix's inverse, for re-serializing a
// mapping key with its operator prefix intact.
func EncodeKeyPrefix(clean string, op Op) string {
	switch op {
	case OpReplace:
		return "=" + clean
	case OpDelete:
		return "~" + clean
	default:
		return clean
	}
}

// Clone deep-copies n. Merge and macro substitution always operate on
// clones so that input layers remain immutable (spec §3 lifecycle).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return &Node{Kind: KindScalar, Scalar: n.Scalar, Opaque: n.Opaque}
	case KindMapping:
		out := &Node{
			Kind:   KindMapping,
			Keys:   append([]string(nil), n.Keys...),
			Ops:    make(map[string]Op, len(n.Ops)),
			Map:    make(map[string]*Node, len(n.Map)),
			Opaque: n.Opaque,
		}
		for k, v := range n.Ops {
			out.Ops[k] = v
		}
		for k, v := range n.Map {
			out.Map[k] = v.Clone()
		}
		return out
	case KindSequence:
		out := &Node{Kind: KindSequence, Seq: make([]*Node, len(n.Seq)), Opaque: n.Opaque}
		for i, v := range n.Seq {
			out.Seq[i] = v.Clone()
		}
		return out
	default:
		panic(fmt.Sprintf("node: Clone: unknown kind %v", n.Kind))
	}
}

// ToAny converts n into a plain Go value (map[string]any / []any /
// scalar), discarding all merge/macro bookkeeping. It performs no
// marker interpretation — it is the engine's "just give me the data"
// escape hatch, used for macro substitution results and for printing
// a raw node (the CLI's get command).
func (n *Node) ToAny() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return n.Scalar
	case KindMapping:
		out := make(map[string]any, len(n.Keys))
		for _, k := range n.Keys {
			out[k] = n.Map[k].ToAny()
		}
		return out
	case KindSequence:
		out := make([]any, len(n.Seq))
		for i, v := range n.Seq {
			out[i] = v.ToAny()
		}
		return out
	default:
		return nil
	}
}

// IsScalarString reports whether n is a scalar whose value is a string,
// returning that string. Markers only ever live in scalar strings.
func (n *Node) IsScalarString() (string, bool) {
	if n == nil || n.Kind != KindScalar {
		return "", false
	}
	s, ok := n.Scalar.(string)
	return s, ok
}
