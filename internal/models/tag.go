package models

import (
	"fmt"
	"sort"
)

// Tag is an entry of the shared tag vocabulary. Messages and customers
// reference tags by ID only.
type Tag struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"displayName" db:"display_name"`
	ColorClass  string `json:"colorClass,omitempty" db:"color_class"`
	Category    string `json:"category,omitempty" db:"category"`
}

// Validate checks if the tag fields are valid
func (t *Tag) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tag id is required")
	}
	if t.DisplayName == "" {
		return fmt.Errorf("tag display name is required")
	}
	return nil
}

// TagSet is a deduplicated set of tag IDs. It is kept sorted so that equal
// sets compare and serialize identically; callers must not rely on order.
type TagSet []string

// NewTagSet builds a normalized set from ids, dropping blanks and duplicates.
func NewTagSet(ids ...string) TagSet {
	seen := make(map[string]struct{}, len(ids))
	set := make(TagSet, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Strings(set)
	return set
}

// Has reports whether id is a member of the set.
func (s TagSet) Has(id string) bool {
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// With returns a copy of the set including id.
func (s TagSet) With(id string) TagSet {
	if s.Has(id) {
		return s.Clone()
	}
	return NewTagSet(append(s.Clone(), id)...)
}

// Without returns a copy of the set excluding id.
func (s TagSet) Without(id string) TagSet {
	out := make(TagSet, 0, len(s))
	for _, existing := range s {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// Toggle adds id if absent and removes it if present.
func (s TagSet) Toggle(id string) TagSet {
	if s.Has(id) {
		return s.Without(id)
	}
	return s.With(id)
}

// ContainsAll reports whether every id of required is in the set.
func (s TagSet) ContainsAll(required []string) bool {
	for _, id := range required {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same ids.
func (s TagSet) Equal(other TagSet) bool {
	a, b := NewTagSet(s...), NewTagSet(other...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s TagSet) Clone() TagSet {
	if s == nil {
		return TagSet{}
	}
	return append(TagSet(nil), s...)
}
