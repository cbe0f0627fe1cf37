package auth

import "strings"

// Allowlist holds the operators whose chat commands are accepted.
// Names match exactly after trimming surrounding whitespace.
//
// An Allowlist is read-only after construction and safe for concurrent use.
type Allowlist struct {
	names map[string]struct{}
}

// NewAllowlist builds an allowlist from operator names. Blank entries are
// skipped.
func NewAllowlist(names []string) *Allowlist {
	a := &Allowlist{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			a.names[n] = struct{}{}
		}
	}
	return a
}

// Allowed reports whether name may issue commands. A nil Allowlist allows
// nobody.
func (a *Allowlist) Allowed(name string) bool {
	if a == nil {
		return false
	}
	_, ok := a.names[strings.TrimSpace(name)]
	return ok
}

// Len returns the number of allowed operators.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}
