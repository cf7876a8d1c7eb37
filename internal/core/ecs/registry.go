package ecs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Registry holds every component and resource definition of one App.
// Definitions are registered once at startup and never mutated afterwards.
type Registry struct {
	components []ComponentType
	compByID   map[ComponentID]ComponentType
	compByName map[string]ComponentType

	resources []ResourceType
	resByID   map[ResourceID]ResourceType
	resByName map[string]ResourceType
}

func NewRegistry() *Registry {
	return &Registry{
		components: make([]ComponentType, 0, 16),
		compByID:   make(map[ComponentID]ComponentType, 16),
		compByName: make(map[string]ComponentType, 16),
		resources:  make([]ResourceType, 0, 8),
		resByID:    make(map[ResourceID]ResourceType, 8),
		resByName:  make(map[string]ResourceType, 8),
	}
}

// RegisterComponent adds a script-stored component. Panics on a duplicate name.
func RegisterComponent[T any](r *Registry, name string, def T, opts ...ComponentOption[T]) *Component[T] {
	return registerComponent(r, name, KindScript, NativeNone, def, opts)
}

// RegisterNative adds a component stored by the native registry under kind.
func RegisterNative[T any](r *Registry, kind NativeKind, def T, opts ...ComponentOption[T]) *Component[T] {
	if kind == NativeNone || kind >= nativeKindCount {
		panic(fmt.Sprintf("ecs: invalid native kind %d", kind))
	}
	return registerComponent(r, kind.String(), KindNative, kind, def, opts)
}

func registerComponent[T any](r *Registry, name string, kind Kind, native NativeKind, def T, opts []ComponentOption[T]) *Component[T] {
	if name == "" {
		panic("ecs: component name must not be empty")
	}
	if _, dup := r.compByName[name]; dup {
		panic("ecs: component already registered: " + name)
	}
	id := ComponentID(xxhash.Sum64String("component:" + name))
	if other, clash := r.compByID[id]; clash {
		panic(fmt.Sprintf("ecs: component id collision between %s and %s", name, other.Name()))
	}
	c := &Component[T]{id: id, name: name, kind: kind, native: native, def: def}
	for _, opt := range opts {
		opt(c)
	}
	r.components = append(r.components, c)
	r.compByID[id] = c
	r.compByName[name] = c
	return c
}

// Components returns definitions in registration order.
func (r *Registry) Components() []ComponentType {
	out := make([]ComponentType, len(r.components))
	copy(out, r.components)
	return out
}

func (r *Registry) Component(id ComponentID) (ComponentType, bool) {
	c, ok := r.compByID[id]
	return c, ok
}

func (r *Registry) ComponentByName(name string) (ComponentType, bool) {
	c, ok := r.compByName[name]
	return c, ok
}

// natives lists the native definitions, used when connecting a registry.
func (r *Registry) natives() []ComponentType {
	var out []ComponentType
	for _, c := range r.components {
		if c.Kind() == KindNative {
			out = append(out, c)
		}
	}
	return out
}

// RegisterResource adds a resource with a default value.
func RegisterResource[T any](r *Registry, name string, def T) *Resource[T] {
	return registerResource(r, name, def, true)
}

// DeclareResource adds a resource without a default. Reading it before
// an insert fails with ErrResourceNotFound.
func DeclareResource[T any](r *Registry, name string) *Resource[T] {
	var zero T
	return registerResource(r, name, zero, false)
}

func registerResource[T any](r *Registry, name string, def T, hasDefault bool) *Resource[T] {
	if name == "" {
		panic("ecs: resource name must not be empty")
	}
	if _, dup := r.resByName[name]; dup {
		panic("ecs: resource already registered: " + name)
	}
	id := ResourceID(xxhash.Sum64String("resource:" + name))
	if other, clash := r.resByID[id]; clash {
		panic(fmt.Sprintf("ecs: resource id collision between %s and %s", name, other.Name()))
	}
	res := &Resource[T]{id: id, name: name, def: def, hasDefault: hasDefault}
	r.resources = append(r.resources, res)
	r.resByID[id] = res
	r.resByName[name] = res
	return res
}

func (r *Registry) Resources() []ResourceType {
	out := make([]ResourceType, len(r.resources))
	copy(out, r.resources)
	return out
}

func (r *Registry) ResourceByName(name string) (ResourceType, bool) {
	res, ok := r.resByName[name]
	return res, ok
}
