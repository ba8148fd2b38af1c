// Package ident implements sparkwheel's path algebra: canonical
// hierarchical identifiers joined by "::", with relative upward
// navigation and numeric-indexed segments.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator is the canonical segment separator.
const Separator = "::"

// legacySeparator is rewritten to Separator before parsing.
const legacySeparator = "#"

// Segment is one component of an Identifier. A segment that looks
// numeric (a non-negative decimal integer without leading zeros) keeps
// that fact around, but whether it is
// ultimately treated as a sequence index or a mapping key is decided at
// descent time by the shape of the node it is applied to (spec §4.1
// tie-break rule), not by the segment itself.
type Segment struct {
	Raw       string
	IsNumeric bool
	Index     int // valid iff IsNumeric
}

// NewSegment builds a Segment from raw text, detecting numeric form.
func NewSegment(raw string) Segment {
	s := Segment{Raw: raw}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && raw == strconv.Itoa(n) {
		s.IsNumeric = true
		s.Index = n
	}
	return s
}

// Identifier is a canonical sparkwheel path: a sequence of segments,
// optionally marked relative by a count of leading ascents.
type Identifier struct {
	Segments []Segment
	Relative int // 0 means absolute; N>0 ascends N levels from an owner
}

// Root is the empty, absolute identifier.
var Root = Identifier{}

// IsRoot reports whether id denotes the root.
func (id Identifier) IsRoot() bool {
	return id.Relative == 0 && len(id.Segments) == 0
}

// IsRelative reports whether id was written with a leading "::".
func (id Identifier) IsRelative() bool {
	return id.Relative > 0
}

// String renders the canonical textual form, segments joined by "::".
func (id Identifier) String() string {
	var sb strings.Builder
	for i := 0; i < id.Relative; i++ {
		sb.WriteString(Separator)
	}
	for i, seg := range id.Segments {
		if i > 0 || id.Relative > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(seg.Raw)
	}
	return sb.String()
}

// Child returns a new absolute identifier with seg appended.
func (id Identifier) Child(seg Segment) Identifier {
	out := Identifier{Segments: make([]Segment, len(id.Segments)+1)}
	copy(out.Segments, id.Segments)
	out.Segments[len(id.Segments)] = seg
	return out
}

// Parent returns id with its last segment removed. Parent of the root
// is the root.
func (id Identifier) Parent() Identifier {
	if len(id.Segments) == 0 {
		return id
	}
	out := Identifier{Segments: make([]Segment, len(id.Segments)-1)}
	copy(out.Segments, id.Segments[:len(id.Segments)-1])
	return out
}

// Equal reports whether two identifiers denote the same canonical path.
func (id Identifier) Equal(other Identifier) bool {
	if id.Relative != other.Relative || len(id.Segments) != len(other.Segments) {
		return false
	}
	for i := range id.Segments {
		if id.Segments[i].Raw != other.Segments[i].Raw {
			return false
		}
	}
	return true
}

func normalizeLegacySeparator(text string) string {
	if !strings.Contains(text, legacySeparator) {
		return text
	}
	return strings.ReplaceAll(text, legacySeparator, Separator)
}

// Parse splits text on "::", rejecting embedded whitespace around
// separators. Empty text denotes the root. A leading "::" (one or more
// repetitions) marks the identifier relative; spec §9: the first
// leading empty segment signals relativity, each additional one
// ascends one parent further.
func Parse(text string) (Identifier, error) {
	text = normalizeLegacySeparator(text)
	if text == "" {
		return Root, nil
	}

	parts := strings.Split(text, Separator)
	relative := 0
	i := 0
	for i < len(parts) && parts[i] == "" {
		relative++
		i++
	}
	if relative > 0 && i >= len(parts) {
		return Identifier{}, fmt.Errorf("ident: %q is relative but names no segment", text)
	}

	segs := make([]Segment, 0, len(parts)-i)
	for _, p := range parts[i:] {
		if p == "" {
			return Identifier{}, fmt.Errorf("ident: %q contains an empty segment", text)
		}
		if strings.TrimSpace(p) != p {
			return Identifier{}, fmt.Errorf("ident: %q contains whitespace around a separator", text)
		}
		segs = append(segs, NewSegment(p))
	}
	return Identifier{Segments: segs, Relative: relative}, nil
}

// Join resolves b — parsed relative to a, spec §4.1. If b is absolute,
// the result is the plain concatenation of a's segments and b's
// segments (used while descending a tree to build canonical ids). If b
// is relative, b.Relative segments are first stripped from the end of
// a, and b's own segments are appended to what remains.
func Join(a, b Identifier) (Identifier, error) {
	if b.Relative == 0 {
		out := Identifier{Segments: make([]Segment, 0, len(a.Segments)+len(b.Segments))}
		out.Segments = append(out.Segments, a.Segments...)
		out.Segments = append(out.Segments, b.Segments...)
		return out, nil
	}
	if b.Relative > len(a.Segments) {
		return Identifier{}, fmt.Errorf("ident: relative identifier %q ascends past the root from %q", b.String(), a.String())
	}
	base := a.Segments[:len(a.Segments)-b.Relative]
	out := Identifier{Segments: make([]Segment, 0, len(base)+len(b.Segments))}
	out.Segments = append(out.Segments, base...)
	out.Segments = append(out.Segments, b.Segments...)
	return out, nil
}

// JoinText parses text and resolves it against owner the way a
// marker's target identifier is resolved against the item that
// contains it (spec §4.3): an absolute text (no leading "::") names a
// path from the graph root outright and owner plays no part; a
// relative text ascends Relative levels from owner before appending
// its own segments. This differs from Join, which always concatenates
// for an absolute b — the right behavior when b is a sub-path being
// appended onto a known prefix (e.g. Graph.Set's value-tree descent),
// but wrong for a marker, where "absolute" means "from the root".
func JoinText(owner Identifier, text string) (Identifier, error) {
	parsed, err := Parse(text)
	if err != nil {
		return Identifier{}, err
	}
	if !parsed.IsRelative() {
		return parsed, nil
	}
	return Join(owner, parsed)
}
