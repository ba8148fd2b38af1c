// Package registry is the statically-linked substitute for the
// external "locate(path) → callable" collaborator of spec §4.5: a
// dotted component path maps to a Go function value, registered once
// at program startup and looked up by the instantiator at resolve
// time.
package registry
