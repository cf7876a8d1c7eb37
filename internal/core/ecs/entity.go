package ecs

import "slices"

// Entity is an opaque identifier. Zero is reserved as InvalidEntity.
// Entities carry no data; all state lives in component storages keyed by entity.
type Entity uint64

const InvalidEntity Entity = 0

func (e Entity) IsZero() bool { return e == InvalidEntity }

// entitySet is the ordered set of valid entities. Enumeration follows insertion
// order, which is also the order queries visit entities in.
type entitySet struct {
	order []Entity
	index map[Entity]struct{}
}

func newEntitySet() *entitySet {
	return &entitySet{
		order: make([]Entity, 0, 256),
		index: make(map[Entity]struct{}, 256),
	}
}

func (s *entitySet) add(e Entity) {
	if _, ok := s.index[e]; ok {
		return
	}
	s.index[e] = struct{}{}
	s.order = append(s.order, e)
}

// remove keeps the remaining order intact. Linear, entity counts are small.
func (s *entitySet) remove(e Entity) bool {
	if _, ok := s.index[e]; !ok {
		return false
	}
	delete(s.index, e)
	if i := slices.Index(s.order, e); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

func (s *entitySet) has(e Entity) bool {
	_, ok := s.index[e]
	return ok
}

func (s *entitySet) len() int { return len(s.order) }

// snapshot copies the current order so callers may mutate the set while walking it.
func (s *entitySet) snapshot() []Entity {
	return slices.Clone(s.order)
}
