// Package perm holds permission sets and the three query shapes evaluated against them.
package perm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind is the shape of a permission query.
type Kind int

const (
	// One asks for a single permission key.
	One Kind = iota
	// Any is satisfied when at least one key is held.
	Any
	// All is satisfied when every key is held.
	All
)

func (k Kind) String() string {
	switch k {
	case One:
		return "one"
	case Any:
		return "any"
	case All:
		return "all"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts the wire name of a query kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "one", "has":
		return One, nil
	case "any", "has_any":
		return Any, nil
	case "all", "has_all":
		return All, nil
	default:
		return 0, fmt.Errorf("perm: unknown query kind %q", raw)
	}
}

// MarshalJSON renders the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the kind by name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Query is a single permission question.
type Query struct {
	Kind Kind     `json:"kind"`
	Keys []string `json:"keys"`
}

// HasOne builds a single-key query.
func HasOne(key string) Query { return Query{Kind: One, Keys: []string{key}} }

// HasAny builds an any-of query.
func HasAny(keys ...string) Query { return Query{Kind: Any, Keys: keys} }

// HasAll builds an all-of query.
func HasAll(keys ...string) Query { return Query{Kind: All, Keys: keys} }

// Set is an unordered collection of permission keys.
type Set map[string]struct{}

// NewSet builds a set from keys, ignoring blanks.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

// Has reports membership of key.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// HasAny reports whether at least one key is held. It is false for an empty key list.
func (s Set) HasAny(keys []string) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// HasAll reports whether every key is held. It is true for an empty key list.
func (s Set) HasAll(keys []string) bool {
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Satisfies evaluates q against the set.
func (s Set) Satisfies(q Query) bool {
	switch q.Kind {
	case One:
		return len(q.Keys) > 0 && s.Has(q.Keys[0])
	case Any:
		return s.HasAny(q.Keys)
	case All:
		return s.HasAll(q.Keys)
	default:
		return false
	}
}

// Keys returns the members in sorted order.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize trims and de-duplicates keys while keeping first-seen order.
func Normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
