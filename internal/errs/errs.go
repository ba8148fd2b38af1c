// Package errs defines sparkwheel's typed error kinds (spec §7). Each
// kind carries the context a caller needs to react to it programmatically
// (the offending identifier, the cycle participants, a suggestion list)
// while still satisfying the error interface for plain display, and
// exposes an ExitCode so a CLI front-end can map a failure to a process
// exit status without re-deriving the mapping itself.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// ExitCode mirrors the exit status table of spec §6: 0 success, 1
// merge/validation error, 2 resolution error, 3 instantiation error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		mergeErr    *MergeError
		validErr    *ValidationError
		parseErr    *ParseError
		instErr     *InstantiationError
		notFoundErr *KeyNotFoundError
		cycleErr    *CycleError
		exprErr     *ExpressionError
	)
	switch {
	case errors.As(err, &mergeErr), errors.As(err, &validErr), errors.As(err, &parseErr):
		return 1
	case errors.As(err, &instErr):
		return 3
	case errors.As(err, &notFoundErr), errors.As(err, &cycleErr), errors.As(err, &exprErr):
		return 2
	default:
		return 1
	}
}

// ParseError reports a malformed identifier or override string.
type ParseError struct {
	Input string
	Cause string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sparkwheel: parse error in %q: %s", e.Input, e.Cause)
}

// MergeError reports operator misuse or a type mismatch during merge.
type MergeError struct {
	Key        string
	Cause      string
	Suggestion string
}

func (e *MergeError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("sparkwheel: merge error at %q: %s", e.Key, e.Cause)
	}
	return fmt.Sprintf("sparkwheel: merge error at %q: %s (%s)", e.Key, e.Cause, e.Suggestion)
}

// KeyNotFoundError reports a missing identifier, with a similarity-ranked
// suggestion list derived from edit distance over the graph's existing
// identifiers.
type KeyNotFoundError struct {
	Identifier  string
	Suggestions []string
}

func (e *KeyNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("sparkwheel: identifier %q not found", e.Identifier)
	}
	return fmt.Sprintf("sparkwheel: identifier %q not found (did you mean: %s?)",
		e.Identifier, strings.Join(e.Suggestions, ", "))
}

// NewKeyNotFoundError ranks known against identifier by edit distance and
// keeps the top limit closest matches, discarding any beyond
// maxDistance — a deliberately loose threshold since the caller already
// knows the exact identifier doesn't exist and just wants plausible typos.
func NewKeyNotFoundError(identifier string, known []string, limit int) *KeyNotFoundError {
	type scored struct {
		key  string
		dist int
	}
	const maxDistance = 6

	candidates := make([]scored, 0, len(known))
	for _, k := range known {
		d := levenshtein.Distance(identifier, k, nil)
		if d <= maxDistance {
			candidates = append(candidates, scored{key: k, dist: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].key < candidates[j].key
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	suggestions := make([]string, len(candidates))
	for i, c := range candidates {
		suggestions[i] = c.key
	}
	return &KeyNotFoundError{Identifier: identifier, Suggestions: suggestions}
}

// CycleError reports a resolution cycle, carrying the ordered participant
// list as encountered during the depth-first walk.
type CycleError struct {
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sparkwheel: cycle detected: %s", strings.Join(e.Participants, " -> "))
}

// ExpressionError wraps the error an expression evaluator raised,
// attributing it to the identifier whose item owned the expression.
type ExpressionError struct {
	Identifier string
	Source     string
	Cause      error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("sparkwheel: expression error at %q (%s): %v", e.Identifier, e.Source, e.Cause)
}

func (e *ExpressionError) Unwrap() error { return e.Cause }

// InstantiationError reports a failure to locate, resolve arguments for,
// or invoke a component's target.
type InstantiationError struct {
	Identifier string
	Target     string
	Stage      string // "lookup", "args", "call"
	Cause      error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("sparkwheel: instantiation error at %q (target %q, stage %s): %v",
		e.Identifier, e.Target, e.Stage, e.Cause)
}

func (e *InstantiationError) Unwrap() error { return e.Cause }

// ValidationError reports a schema validation failure raised by an
// external collaborator; sparkwheel itself never produces one, but
// carries the shape so host code can report it uniformly.
type ValidationError struct {
	Identifier string
	Cause      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sparkwheel: validation error at %q: %v", e.Identifier, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }
