// Package merge implements sparkwheel's layered merge (spec §4.2): an
// ordered list of raw node.Node trees folds into one tree, honoring the
// compose-by-default policy and the `=` (replace) / `~` (delete)
// operator prefixes recorded on mapping keys by the node package's YAML
// adapter. The merger is pure — it never resolves references, evaluates
// expressions, or looks at directive fields.
package merge

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/node"
)

// Merge folds layers left to right into a single tree. The first layer
// is the base: any operator prefix written on one of its own keys has no
// prior layer to act against, so replace degrades to a plain key and
// delete degrades to omitting the key outright. Every subsequent layer
// is merged as an overlay against the accumulator built so far.
func Merge(layers []*node.Node) (*node.Node, error) {
	if len(layers) == 0 {
		return node.NewMapping(), nil
	}
	acc := flattenBase(layers[0])
	for _, layer := range layers[1:] {
		merged, err := mergeValue(acc, layer)
		if err != nil {
			return nil, err
		}
		acc = merged
	}
	return acc, nil
}

// flattenBase clones n for use as the initial accumulator, stripping
// operator semantics it cannot act on: a `=K` in the base is kept as a
// plain key, a `~K` in the base is dropped entirely.
func flattenBase(n *node.Node) *node.Node {
	if n == nil {
		return node.NewMapping()
	}
	switch n.Kind {
	case node.KindMapping:
		out := node.NewMapping()
		for _, k := range n.Keys {
			if n.Ops[k] == node.OpDelete {
				continue
			}
			out.Set(k, node.OpNone, flattenBase(n.Map[k]))
		}
		out.Opaque = n.Opaque
		return out
	case node.KindSequence:
		seq := make([]*node.Node, len(n.Seq))
		for i, c := range n.Seq {
			seq[i] = flattenBase(c)
		}
		return &node.Node{Kind: node.KindSequence, Seq: seq, Opaque: n.Opaque}
	default:
		return n.Clone()
	}
}

// mergeValue merges overlay onto base, honoring overlay's per-key
// operators when both sides are mappings, appending when both sides are
// sequences, and otherwise replacing base outright — spec §4.2's
// "scalar: replace" catch-all, generalized to any non-mapping,
// non-sequence-pair combination.
func mergeValue(base, overlay *node.Node) (*node.Node, error) {
	if overlay == nil {
		return base, nil
	}
	switch {
	case base.Kind == node.KindMapping && overlay.Kind == node.KindMapping:
		return mergeMapping(base, overlay)
	case base.Kind == node.KindSequence && overlay.Kind == node.KindSequence:
		return appendSequence(base, overlay), nil
	case (base.Kind == node.KindSequence) != (overlay.Kind == node.KindSequence):
		return nil, &errs.MergeError{
			Cause: fmt.Sprintf("cannot compose a %s with a %s: list-append requires both sides to be sequences", base.Kind, overlay.Kind),
		}
	default:
		return overlay.Clone(), nil
	}
}

func appendSequence(base, overlay *node.Node) *node.Node {
	out := make([]*node.Node, 0, len(base.Seq)+len(overlay.Seq))
	for _, c := range base.Seq {
		out = append(out, c.Clone())
	}
	for _, c := range overlay.Seq {
		out = append(out, c.Clone())
	}
	return &node.Node{Kind: node.KindSequence, Seq: out}
}

func mergeMapping(base, overlay *node.Node) (*node.Node, error) {
	result := node.NewMapping()
	for _, k := range base.Keys {
		result.Set(k, node.OpNone, base.Map[k].Clone())
	}

	var errAcc *multierror.Error
	for _, k := range overlay.Keys {
		child := overlay.Map[k]
		switch overlay.Ops[k] {
		case node.OpReplace:
			if _, ok := base.Get(k); !ok {
				errAcc = multierror.Append(errAcc, &errs.MergeError{
					Key:        k,
					Cause:      "replace operator \"=\" requires the key to exist in the base",
					Suggestion: "remove the \"=\" prefix to compose it as a new key instead",
				})
				continue
			}
			result.Set(k, node.OpNone, child.Clone())

		case node.OpDelete:
			if err := applyDelete(result, k, child); err != nil {
				errAcc = multierror.Append(errAcc, err)
			}

		default:
			baseChild, ok := base.Get(k)
			if !ok {
				result.Set(k, node.OpNone, child.Clone())
				continue
			}
			merged, err := mergeValue(baseChild, child)
			if err != nil {
				errAcc = multierror.Append(errAcc, err)
				continue
			}
			result.Set(k, node.OpNone, merged)
		}
	}
	if err := errAcc.ErrorOrNil(); err != nil {
		return nil, err
	}
	return result, nil
}

// applyDelete interprets a `~K` overlay value against result, which
// already holds base's (unmodified) value for k.
func applyDelete(result *node.Node, k string, overlayValue *node.Node) error {
	if isDeleteWholeKeyForm(overlayValue) {
		result.Delete(k)
		return nil
	}

	current, ok := result.Get(k)
	if !ok {
		return &errs.MergeError{
			Key:   k,
			Cause: "delete operator \"~\" with an index/key list requires the key to exist in the base",
		}
	}

	switch {
	case current.Kind == node.KindSequence && overlayValue.Kind == node.KindSequence:
		indices, err := decodeIndexList(overlayValue, len(current.Seq))
		if err != nil {
			return &errs.MergeError{Key: k, Cause: err.Error()}
		}
		result.Set(k, node.OpNone, removeIndices(current, indices))
		return nil

	case current.Kind == node.KindMapping && overlayValue.Kind == node.KindSequence:
		names, err := decodeNameList(overlayValue)
		if err != nil {
			return &errs.MergeError{Key: k, Cause: err.Error()}
		}
		for _, name := range names {
			current.Delete(name)
		}
		return nil

	default:
		return &errs.MergeError{
			Key:   k,
			Cause: fmt.Sprintf("delete operator \"~\" cannot apply an index/key list to a %s", current.Kind),
		}
	}
}

// isDeleteWholeKeyForm reports whether v is the null or empty form of a
// `~K` value, which removes K outright and is idempotent (spec §4.2,
// P4).
func isDeleteWholeKeyForm(v *node.Node) bool {
	if v == nil {
		return true
	}
	switch v.Kind {
	case node.KindScalar:
		return v.Scalar == nil
	case node.KindSequence:
		return len(v.Seq) == 0
	case node.KindMapping:
		return len(v.Keys) == 0
	default:
		return false
	}
}

func decodeIndexList(v *node.Node, length int) ([]int, error) {
	seen := make(map[int]bool, len(v.Seq))
	out := make([]int, 0, len(v.Seq))
	for _, c := range v.Seq {
		i, ok := asInt(c)
		if !ok {
			return nil, fmt.Errorf("index list entries must be integers, got %v", c.Scalar)
		}
		if i < 0 {
			i += length
		}
		if i < 0 || i >= length {
			continue // out-of-range indices are silently skipped, matching a no-op delete
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

func asInt(n *node.Node) (int, bool) {
	if n.Kind != node.KindScalar {
		return 0, false
	}
	switch v := n.Scalar.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func decodeNameList(v *node.Node) ([]string, error) {
	out := make([]string, 0, len(v.Seq))
	for _, c := range v.Seq {
		s, ok := c.IsScalarString()
		if !ok {
			return nil, fmt.Errorf("key list entries must be strings, got %v", c.Scalar)
		}
		out = append(out, s)
	}
	return out, nil
}

// removeIndices returns a clone of current with the given indices
// (already deduplicated and sorted high-to-low by decodeIndexList)
// removed, so that removing an earlier index never invalidates a later
// one still pending removal.
func removeIndices(current *node.Node, indicesHighToLow []int) *node.Node {
	out := make([]*node.Node, len(current.Seq))
	copy(out, current.Seq)
	for _, i := range indicesHighToLow {
		out = append(out[:i], out[i+1:]...)
	}
	return &node.Node{Kind: node.KindSequence, Seq: out}
}
