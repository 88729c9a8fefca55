// Package binding implements the identifier model the scope manager and heap
// are built on: the user-visible Binding and the injective UniqueBinding
// derived from it at value-construction time.
package binding

import "github.com/google/uuid"

// Binding is a user-visible name in the source program. The zero value is the
// anonymous binding, used for values that have no source name (e.g.
// intermediate expression results).
type Binding string

// Anon is the anonymous binding shared by values with no user-visible name.
const Anon Binding = ""

// IsAnon reports whether b is the anonymous binding.
func (b Binding) IsAnon() bool { return b == Anon }

func (b Binding) String() string { return string(b) }

// UniqueBinding is an opaque, process-wide injective identifier tied to one
// value instance for its lifetime. Two values sharing the same Binding always
// have distinct UniqueBindings.
type UniqueBinding struct {
	s string
}

// New derives a fresh UniqueBinding for bnd. Distinct calls, even with the
// same bnd, never return equal results.
func New(bnd Binding) UniqueBinding {
	return UniqueBinding{s: string(bnd) + "#" + uuid.NewString()}
}

func (u UniqueBinding) String() string { return u.s }

// IsZero reports whether u is the zero UniqueBinding, i.e. was never assigned
// by New. A zero UniqueBinding never matches one returned by New.
func (u UniqueBinding) IsZero() bool { return u.s == "" }
