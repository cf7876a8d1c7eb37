package native

import "github.com/esengine/microes-sub003/internal/core/ecs"

// removable is implemented by all component stores so the Store can
// bulk-remove an entity's data on destroy.
type removable interface {
	remove(e ecs.Entity)
}

// ptrStore is a typed map store. Values are held by pointer so native
// systems update them in place.
type ptrStore[T any] struct {
	data map[ecs.Entity]*T
}

func newPtrStore[T any]() *ptrStore[T] {
	return &ptrStore[T]{data: make(map[ecs.Entity]*T, 256)}
}

func (s *ptrStore[T]) set(e ecs.Entity, v T) {
	if p, ok := s.data[e]; ok {
		*p = v
		return
	}
	s.data[e] = &v
}

func (s *ptrStore[T]) get(e ecs.Entity) (*T, bool) {
	p, ok := s.data[e]
	return p, ok
}

// value returns a copy of e's value, or the zero value.
func (s *ptrStore[T]) value(e ecs.Entity) T {
	if p, ok := s.data[e]; ok {
		return *p
	}
	var zero T
	return zero
}

func (s *ptrStore[T]) has(e ecs.Entity) bool {
	_, ok := s.data[e]
	return ok
}

func (s *ptrStore[T]) remove(e ecs.Entity) { delete(s.data, e) }

func (s *ptrStore[T]) len() int { return len(s.data) }

func (s *ptrStore[T]) ops() ecs.NativeOps {
	return ecs.BindNative(s.set, s.value, s.has, s.remove)
}

// each2 visits entities present in both stores, walking the smaller one.
func each2[A, B any](sa *ptrStore[A], sb *ptrStore[B], fn func(ecs.Entity, *A, *B)) {
	if sa.len() <= sb.len() {
		for e, a := range sa.data {
			if b, ok := sb.data[e]; ok {
				fn(e, a, b)
			}
		}
		return
	}
	for e, b := range sb.data {
		if a, ok := sa.data[e]; ok {
			fn(e, a, b)
		}
	}
}
