package graph

import (
	"fmt"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/node"
)

// MaxMacroDepth bounds how many macro-to-macro hops expandMacros will
// chase before treating the chain as cyclical (spec §4.4: "expanded
// iteratively with a depth limit").
const MaxMacroDepth = 32

// FileLoader loads the raw tree of an external YAML file referenced by
// a `%FILE::ID` macro. node.LoadYAMLFile satisfies this signature.
type FileLoader func(path string) (*node.Node, error)

// macroSource is the tree a local (file-unqualified) macro resolves
// its identifier against, plus a name used for cycle diagnostics and
// as the file cache key.
type macroSource struct {
	root *node.Node
	name string
}

// expandMacros walks root and splices every `%` macro it finds,
// recursively expanding macro-to-macro chains and any macros nested in
// spliced content, then marks the root of each splice Opaque so the
// resolver treats it as inert raw data (spec scenario 8).
func expandMacros(root *node.Node, loadFile FileLoader) (*node.Node, error) {
	fileCache := make(map[string]*node.Node)
	main := macroSource{root: root, name: ""}
	return expandNode(root, ident.Root, main, nil, loadFile, fileCache)
}

// expandNode walks n, carrying owner — n's own absolute identifier
// within src.root — so that a relative macro target found in a scalar
// (`%::sibling`) has something to ascend from, the same way JoinText
// resolves a relative `@` reference against the item containing it.
func expandNode(n *node.Node, owner ident.Identifier, src macroSource, chain []string, loadFile FileLoader, fileCache map[string]*node.Node) (*node.Node, error) {
	switch n.Kind {
	case node.KindScalar:
		text, ok := n.IsScalarString()
		if !ok || !isMacro(text) {
			return n, nil
		}
		return chaseMacro(text, owner, src, chain, loadFile, fileCache)

	case node.KindMapping:
		out := node.NewMapping()
		for _, k := range n.Keys {
			child, err := expandNode(n.Map[k], owner.Child(ident.NewSegment(k)), src, chain, loadFile, fileCache)
			if err != nil {
				return nil, err
			}
			out.Set(k, node.OpNone, child)
		}
		return out, nil

	case node.KindSequence:
		seq := make([]*node.Node, len(n.Seq))
		for i, c := range n.Seq {
			child, err := expandNode(c, owner.Child(ident.NewSegment(fmt.Sprintf("%d", i))), src, chain, loadFile, fileCache)
			if err != nil {
				return nil, err
			}
			seq[i] = child
		}
		return &node.Node{Kind: node.KindSequence, Seq: seq}, nil

	default:
		return n, nil
	}
}

func isMacro(text string) bool {
	return len(text) > 1 && text[0] == '%'
}

// parseMacroText splits `%[FILE::]ID` into an optional file path and
// the identifier text. FILE is distinguished from a plain local
// identifier segment by looking like a path: it contains ".", "/" or
// "\", which no bare `::`-segment does.
func parseMacroText(text string) (file string, idText string) {
	body := text[1:]
	idx := strings.Index(body, "::")
	if idx == -1 {
		return "", body
	}
	candidate := body[:idx]
	if strings.ContainsAny(candidate, "./\\") {
		return candidate, body[idx+2:]
	}
	return "", body
}

func chaseMacro(text string, owner ident.Identifier, src macroSource, chain []string, loadFile FileLoader, fileCache map[string]*node.Node) (*node.Node, error) {
	file, idText := parseMacroText(text)

	// A file-qualified macro (%FILE::ID) has no owner in the target
	// file to ascend a relative id from; only a local macro resolves
	// relative against the node that holds it (spec §4.3).
	idOwner := owner
	if file != "" {
		idOwner = ident.Root
	}
	id, err := ident.JoinText(idOwner, idText)
	if err != nil {
		return nil, &errs.MergeError{Cause: fmt.Sprintf("macro %q: %v", text, err)}
	}

	targetRoot := src.root
	targetName := src.name
	if file != "" {
		loaded, ok := fileCache[file]
		if !ok {
			if loadFile == nil {
				return nil, &errs.MergeError{Cause: fmt.Sprintf("macro %q: no file loader configured", text)}
			}
			loaded, err = loadFile(file)
			if err != nil {
				return nil, &errs.MergeError{Cause: fmt.Sprintf("macro %q: loading %s: %v", text, file, err)}
			}
			fileCache[file] = loaded
		}
		targetRoot = loaded
		targetName = file
	}

	key := targetName + "\x00" + id.String()
	for _, seen := range chain {
		if seen == key {
			return nil, &errs.MergeError{
				Cause: fmt.Sprintf("macro cycle detected: %s", strings.Join(append(chain, key), " -> ")),
			}
		}
	}
	if len(chain) >= MaxMacroDepth {
		return nil, &errs.MergeError{
			Cause: fmt.Sprintf("macro expansion exceeded depth %d chasing %q", MaxMacroDepth, text),
		}
	}

	target, err := node.Descend(targetRoot, id)
	if err != nil {
		return nil, &errs.MergeError{Cause: fmt.Sprintf("macro %q: %v", text, err)}
	}

	newSrc := macroSource{root: targetRoot, name: targetName}
	expanded, err := expandNode(target, id, newSrc, append(chain, key), loadFile, fileCache)
	if err != nil {
		return nil, err
	}
	result := expanded.Clone()
	result.Opaque = true
	return result, nil
}
