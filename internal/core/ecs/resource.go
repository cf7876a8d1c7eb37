package ecs

import "fmt"

// ResourceID is the identity token of a resource definition.
type ResourceID uint64

// ResourceType is the untyped view of a resource definition.
type ResourceType interface {
	ID() ResourceID
	Name() string
	HasDefault() bool
	Default() any
	accepts(v any) bool
}

// Resource describes a process-wide singleton value. Exactly one value per
// Resources store exists once it is inserted or first read.
type Resource[T any] struct {
	id         ResourceID
	name       string
	def        T
	hasDefault bool
}

func (r *Resource[T]) ID() ResourceID   { return r.id }
func (r *Resource[T]) Name() string     { return r.name }
func (r *Resource[T]) HasDefault() bool { return r.hasDefault }
func (r *Resource[T]) Default() any     { return r.def }

func (r *Resource[T]) accepts(v any) bool {
	_, ok := v.(T)
	return ok
}

// Value wraps v for Resources.Insert and Commands.InsertResource.
func (r *Resource[T]) Value(v T) ResourceValue {
	return ResourceValue{Type: r, Value: v}
}

type ResourceValue struct {
	Type  ResourceType
	Value any
}

// Resources stores resource values keyed by definition identity.
// Owned by one App; only the Runner, Commands and ResMut write to it.
type Resources struct {
	values map[ResourceID]any
}

func NewResources() *Resources {
	return &Resources{values: make(map[ResourceID]any, 8)}
}

func (rs *Resources) Insert(v ResourceValue) error {
	if v.Type == nil {
		return fmt.Errorf("%w: insert resource without definition", ErrProgrammer)
	}
	if !v.Type.accepts(v.Value) {
		return fmt.Errorf("%w: resource %s does not accept %T", ErrProgrammer, v.Type.Name(), v.Value)
	}
	rs.values[v.Type.ID()] = v.Value
	return nil
}

// Get returns the stored value, materializing the default on first read.
func (rs *Resources) Get(r ResourceType) (any, error) {
	if v, ok := rs.values[r.ID()]; ok {
		return v, nil
	}
	if !r.HasDefault() {
		return nil, fmt.Errorf("read %s: %w", r.Name(), ErrResourceNotFound)
	}
	v := r.Default()
	rs.values[r.ID()] = v
	return v, nil
}

func (rs *Resources) Has(r ResourceType) bool {
	_, ok := rs.values[r.ID()]
	return ok
}

func (rs *Resources) Remove(r ResourceType) {
	delete(rs.values, r.ID())
}

// Reset drops every value; defaults come back on next read.
func (rs *Resources) Reset() {
	clear(rs.values)
}

func InsertResource[T any](rs *Resources, r *Resource[T], v T) {
	rs.values[r.id] = v
}

func GetResource[T any](rs *Resources, r *Resource[T]) (T, error) {
	v, err := rs.Get(r)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// MustGetResource panics when the resource was never inserted and has no default.
func MustGetResource[T any](rs *Resources, r *Resource[T]) T {
	v, err := GetResource(rs, r)
	if err != nil {
		panic(err)
	}
	return v
}

// ResMut is a mutation handle scoped to one system run. Every Set and
// Modify writes straight back into the store.
type ResMut[T any] struct {
	store *Resources
	def   *Resource[T]
}

func NewResMut[T any](rs *Resources, r *Resource[T]) *ResMut[T] {
	return &ResMut[T]{store: rs, def: r}
}

func (m *ResMut[T]) Get() (T, error) { return GetResource(m.store, m.def) }

func (m *ResMut[T]) Set(v T) { InsertResource(m.store, m.def, v) }

func (m *ResMut[T]) Modify(fn func(*T)) error {
	v, err := m.Get()
	if err != nil {
		return err
	}
	fn(&v)
	m.Set(v)
	return nil
}
