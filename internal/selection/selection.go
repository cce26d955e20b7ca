// Package selection tracks the records a reviewer has marked for a bulk
// decision. Membership is independent of the listing page being shown.
package selection

import (
	"slices"
	"sync"
)

// Set is an insertion-ordered set of record ids. It is safe for concurrent
// use; each method is atomic with respect to the others.
type Set struct {
	mu    sync.Mutex
	order []int64
	index map[int64]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{index: make(map[int64]struct{})}
}

// Add inserts id. Adding a member again keeps its original position.
func (s *Set) Add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(id)
}

// Remove deletes id if present.
func (s *Set) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Set) Toggle(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		s.removeLocked(id)
		return false
	}
	s.addLocked(id)
	return true
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.index = make(map[int64]struct{})
}

// ReplaceAll makes the set contain exactly ids, in the given order.
// Duplicates keep their first position.
func (s *Set) ReplaceAll(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.index = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.addLocked(id)
	}
}

// Contains reports whether id is selected.
func (s *Set) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Size returns the number of selected ids.
func (s *Set) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Members returns a snapshot of the selected ids in insertion order.
func (s *Set) Members() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

func (s *Set) addLocked(id int64) {
	if s.index == nil {
		s.index = make(map[int64]struct{})
	}
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Set) removeLocked(id int64) {
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}
