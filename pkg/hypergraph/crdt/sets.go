package crdt

import (
	"time"

	"github.com/google/uuid"
)

// LWWSet is a last-writer-wins element set: two maps of element -> latest
// add/remove timestamp. An element is present iff its add strictly beats
// its remove, which biases ties toward removal.
type LWWSet[T comparable] struct {
	adds    map[T]time.Time
	removes map[T]time.Time
}

// NewLWWSet creates an empty set.
func NewLWWSet[T comparable]() *LWWSet[T] {
	return &LWWSet[T]{
		adds:    make(map[T]time.Time),
		removes: make(map[T]time.Time),
	}
}

// Add records an insertion. Only timestamps newer than the known add for
// the element take effect.
func (s *LWWSet[T]) Add(element T, timestamp time.Time) {
	if current, ok := s.adds[element]; !ok || timestamp.After(current) {
		s.adds[element] = timestamp
	}
}

// Remove records a removal under the same newest-wins rule.
func (s *LWWSet[T]) Remove(element T, timestamp time.Time) {
	if current, ok := s.removes[element]; !ok || timestamp.After(current) {
		s.removes[element] = timestamp
	}
}

// Contains reports whether the element is present given the latest events.
func (s *LWWSet[T]) Contains(element T) bool {
	addTS, added := s.adds[element]
	if !added {
		return false
	}
	removeTS, removed := s.removes[element]
	if !removed {
		return true
	}
	return addTS.After(removeTS)
}

// Elements returns the present elements (order unspecified).
func (s *LWWSet[T]) Elements() []T {
	out := make([]T, 0, len(s.adds))
	for element := range s.adds {
		if s.Contains(element) {
			out = append(out, element)
		}
	}
	return out
}

// Len counts present elements; linear in set size.
func (s *LWWSet[T]) Len() int {
	return len(s.Elements())
}

// Merge folds another replica in, taking the per-entry max of both maps.
func (s *LWWSet[T]) Merge(other *LWWSet[T]) {
	for element, ts := range other.adds {
		if current, ok := s.adds[element]; !ok || ts.After(current) {
			s.adds[element] = ts
		}
	}
	for element, ts := range other.removes {
		if current, ok := s.removes[element]; !ok || ts.After(current) {
			s.removes[element] = ts
		}
	}
}

// Equal reports whether both replicas hold identical state.
func (s *LWWSet[T]) Equal(other *LWWSet[T]) bool {
	if len(s.adds) != len(other.adds) || len(s.removes) != len(other.removes) {
		return false
	}
	for element, ts := range s.adds {
		if ots, ok := other.adds[element]; !ok || !ts.Equal(ots) {
			return false
		}
	}
	for element, ts := range s.removes {
		if ots, ok := other.removes[element]; !ok || !ts.Equal(ots) {
			return false
		}
	}
	return true
}

// ORSet is an observed-remove set: adds allocate unique tags, removes
// tombstone the tags observed at removal time. A re-add after a remove
// survives because it carries a fresh tag.
type ORSet[T comparable] struct {
	elements   map[T]map[string]struct{}
	tombstones map[T]map[string]struct{}
}

// NewORSet creates an empty set.
func NewORSet[T comparable]() *ORSet[T] {
	return &ORSet[T]{
		elements:   make(map[T]map[string]struct{}),
		tombstones: make(map[T]map[string]struct{}),
	}
}

// Add inserts the element under a fresh unique tag.
func (s *ORSet[T]) Add(element T) {
	tag := uuid.NewString()
	if s.elements[element] == nil {
		s.elements[element] = make(map[string]struct{})
	}
	s.elements[element][tag] = struct{}{}
}

// Remove tombstones every currently observed tag of the element.
func (s *ORSet[T]) Remove(element T) {
	tags, ok := s.elements[element]
	if !ok {
		return
	}
	if s.tombstones[element] == nil {
		s.tombstones[element] = make(map[string]struct{})
	}
	for tag := range tags {
		s.tombstones[element][tag] = struct{}{}
	}
	delete(s.elements, element)
}

// Contains reports whether the element has any live tag.
func (s *ORSet[T]) Contains(element T) bool {
	for tag := range s.elements[element] {
		if _, dead := s.tombstones[element][tag]; !dead {
			return true
		}
	}
	return false
}

// Elements returns present elements (order unspecified).
func (s *ORSet[T]) Elements() []T {
	out := make([]T, 0, len(s.elements))
	for element := range s.elements {
		if s.Contains(element) {
			out = append(out, element)
		}
	}
	return out
}

// Merge unions elements and tombstones, then drops tags the union of
// tombstones has killed.
func (s *ORSet[T]) Merge(other *ORSet[T]) {
	for element, tags := range other.elements {
		if s.elements[element] == nil {
			s.elements[element] = make(map[string]struct{})
		}
		for tag := range tags {
			s.elements[element][tag] = struct{}{}
		}
	}
	for element, tags := range other.tombstones {
		if s.tombstones[element] == nil {
			s.tombstones[element] = make(map[string]struct{})
		}
		for tag := range tags {
			s.tombstones[element][tag] = struct{}{}
		}
	}

	for element, tags := range s.elements {
		for tag := range tags {
			if _, dead := s.tombstones[element][tag]; dead {
				delete(tags, tag)
			}
		}
		if len(tags) == 0 {
			delete(s.elements, element)
		}
	}
}
