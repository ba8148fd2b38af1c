package merge

import (
	"strings"

	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/node"
)

// ParseOverride decodes a single CLI override string of the form
// `[~|=]<identifier>=<literal>` (spec §6) into a nested mapping tree
// whose leaf key carries the requested operator. `~<identifier>` with
// no `=<literal>` suffix is the whole-key delete form.
func ParseOverride(s string) (*node.Node, error) {
	op := node.OpNone
	rest := s
	switch {
	case strings.HasPrefix(s, "~"):
		op = node.OpDelete
		rest = s[1:]
	case strings.HasPrefix(s, "="):
		op = node.OpReplace
		rest = s[1:]
	}

	idText, literalText, hasLiteral := strings.Cut(rest, "=")
	if idText == "" {
		return nil, &errs.ParseError{Input: s, Cause: "override string has no identifier"}
	}
	if !hasLiteral && op != node.OpDelete {
		return nil, &errs.ParseError{Input: s, Cause: "override string is missing \"=<literal>\""}
	}

	id, err := ident.Parse(idText)
	if err != nil {
		return nil, &errs.ParseError{Input: s, Cause: err.Error()}
	}
	if id.IsRelative() {
		return nil, &errs.ParseError{Input: s, Cause: "override identifier must be absolute"}
	}

	var leaf *node.Node
	if !hasLiteral {
		leaf = node.NewScalar(nil)
	} else {
		leaf = DecodeLiteral(literalText)
	}

	return buildOverrideTree(id.Segments, op, leaf), nil
}

func buildOverrideTree(segs []ident.Segment, op node.Op, leaf *node.Node) *node.Node {
	if len(segs) == 0 {
		return leaf
	}
	if len(segs) == 1 {
		m := node.NewMapping()
		m.Set(segs[0].Raw, op, leaf)
		return m
	}
	m := node.NewMapping()
	m.Set(segs[0].Raw, node.OpNone, buildOverrideTree(segs[1:], op, leaf))
	return m
}

// DecodeLiteral decodes a literal as the override-string grammar
// requires: a structured host-language literal (number, boolean, null,
// list, or object with relaxed key-quoting) when the text parses as
// one, else the literal text verbatim as a string. YAML's own flow
// scalar/collection grammar already covers every form the grammar
// calls for, so literal decoding is just a YAML parse with a
// string-scalar fallback.
func DecodeLiteral(text string) *node.Node {
	if text == "" {
		return node.NewScalar("")
	}
	n, err := node.FromYAML([]byte(text), false)
	if err != nil {
		return node.NewScalar(text)
	}
	return n
}

// BuildOverrideTree combines every override string into the single
// override tree spec §4.2 describes, preserving each leaf's own
// operator for the later merge pass against the real configuration.
func BuildOverrideTree(overrides []string) (*node.Node, error) {
	combined := node.NewMapping()
	for _, s := range overrides {
		tree, err := ParseOverride(s)
		if err != nil {
			return nil, err
		}
		combined = combineOverlay(combined, tree)
	}
	return combined, nil
}

// combineOverlay unions two overlay fragments without base-existence
// validation — unlike mergeMapping, both sides here are themselves
// overlays still waiting to be applied to a real base, so `=`/`~`
// annotations are carried through rather than checked.
func combineOverlay(a, b *node.Node) *node.Node {
	if a.Kind != node.KindMapping || b.Kind != node.KindMapping {
		return b.Clone()
	}
	out := a.Clone()
	for _, k := range b.Keys {
		bChild := b.Map[k]
		bOp := b.Ops[k]
		aChild, exists := out.Get(k)
		if exists && out.Ops[k] == node.OpNone && bOp == node.OpNone &&
			aChild.Kind == node.KindMapping && bChild.Kind == node.KindMapping {
			out.Set(k, node.OpNone, combineOverlay(aChild, bChild))
			continue
		}
		out.Set(k, bOp, bChild.Clone())
	}
	return out
}
