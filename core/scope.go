package core

import (
	"fmt"
	"slices"
	"strings"
)

// Scope is a set of exact-match metadata constraints.
// It is attached to every write and required on every read, which is what
// keeps one tenant's entries invisible to another.
type Scope map[string]string

// Validate checks that the scope has at least one key and no empty keys or values.
func (s Scope) Validate() error {
	if len(s) == 0 {
		return ErrMissingScope
	}
	for k, v := range s {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty scope key", ErrMissingScope)
		}
		if v == "" {
			return fmt.Errorf("%w: empty value for scope key %q", ErrMissingScope, k)
		}
	}
	return nil
}

// Matches reports whether metadata satisfies every constraint of the scope.
// An empty scope matches everything.
func (s Scope) Matches(meta Metadata) bool {
	for k, v := range s {
		got, ok := meta[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// With returns a copy of the scope with key set to value.
func (s Scope) With(key, value string) Scope {
	out := s.Clone()
	out[key] = value
	return out
}

// Clone returns a copy of the scope.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the scope keys in sorted order.
func (s Scope) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s Scope) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		parts = append(parts, k+"="+s[k])
	}
	return strings.Join(parts, ",")
}

// ParseScope parses "key=value" pairs into a scope.
func ParseScope(pairs []string) (Scope, error) {
	scope := make(Scope, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid scope pair %q: expected key=value", p)
		}
		scope[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return scope, nil
}
