package reconcile

import (
	"errors"
	"strings"
)

// IdentifierSet is an insertion-ordered set of identifiers of a single kind.
// Uniqueness is an exact match on the trimmed value. The zero value is an
// empty email set ready for use.
type IdentifierSet struct {
	kind  Kind
	items []Identifier
	index map[string]int
}

// NewEmailSet returns an empty set that validates email shape on Add.
func NewEmailSet() *IdentifierSet { return newSet(KindEmail) }

// NewCodeSet returns an empty set of student codes.
func NewCodeSet() *IdentifierSet { return newSet(KindStudentCode) }

func newSet(kind Kind) *IdentifierSet {
	return &IdentifierSet{kind: kind, index: map[string]int{}}
}

// Kind returns the kind of identifiers held by the set.
func (s *IdentifierSet) Kind() Kind { return s.kind }

// Add inserts raw after trimming. Blank input is ignored.
func (s *IdentifierSet) Add(raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	if s.kind == KindEmail && !ValidEmail(v) {
		return &InvalidFormatError{Value: raw}
	}
	if _, ok := s.index[v]; ok {
		return &DuplicateError{Value: raw}
	}
	if s.index == nil {
		s.index = map[string]int{}
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, Identifier{Kind: s.kind, Value: v, Raw: raw})
	return nil
}

// Remove drops the value matching raw, if any.
func (s *IdentifierSet) Remove(raw string) {
	v := strings.TrimSpace(raw)
	i, ok := s.index[v]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, v)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].Value] = j
	}
}

// Contains reports whether the trimmed form of raw is in the set.
func (s *IdentifierSet) Contains(raw string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[strings.TrimSpace(raw)]
	return ok
}

// Len returns the number of identifiers in the set. A nil set is empty.
func (s *IdentifierSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the identifiers in insertion order.
func (s *IdentifierSet) Items() []Identifier {
	if s == nil {
		return nil
	}
	out := make([]Identifier, len(s.items))
	copy(out, s.items)
	return out
}

// Collect builds a set of the given kind from raws. Malformed entries are
// returned in invalid and duplicates in dup, both as the raw strings supplied.
func Collect(kind Kind, raws []string) (set *IdentifierSet, invalid, dup []string) {
	set = newSet(kind)
	for _, raw := range raws {
		err := set.Add(raw)
		if err == nil {
			continue
		}
		var fe *InvalidFormatError
		var de *DuplicateError
		switch {
		case errors.As(err, &fe):
			invalid = append(invalid, raw)
		case errors.As(err, &de):
			dup = append(dup, raw)
		}
	}
	return set, invalid, dup
}
