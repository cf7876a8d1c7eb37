package ecs

import (
	"fmt"

	"go.uber.org/zap"
)

// World is the single authority on entity existence and component data.
// Script components live in its own maps; native components are dispatched
// to the connected NativeRegistry. Without one, native operations degrade to
// no-ops and defaults so the World stays usable headless.
type World struct {
	registry *Registry
	entities *entitySet
	nextID   Entity

	native   NativeRegistry
	bindings map[ComponentID]NativeOps

	scripts map[ComponentID]map[Entity]any

	// depth of live query iterations, used to flag structural changes
	iterating int
	log       *zap.Logger
}

func NewWorld(reg *Registry, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		registry: reg,
		entities: newEntitySet(),
		nextID:   1,
		bindings: make(map[ComponentID]NativeOps),
		scripts:  make(map[ComponentID]map[Entity]any, 16),
		log:      log,
	}
}

func (w *World) Registry() *Registry { return w.registry }

// Connect binds every registered native component kind to n. Once connected,
// all entity ids come from n, so connecting a populated world is refused.
func (w *World) Connect(n NativeRegistry) error {
	if w.entities.len() > 0 {
		return fmt.Errorf("connect native registry: %w", ErrWorldNotEmpty)
	}
	bindings := make(map[ComponentID]NativeOps)
	for _, c := range w.registry.natives() {
		ops, ok := n.Bind(c.Native())
		if !ok || !ops.complete() {
			return fmt.Errorf("connect native registry: %s: %w", c.Name(), ErrNativeUnbound)
		}
		bindings[c.ID()] = ops
	}
	w.native = n
	w.bindings = bindings
	return nil
}

func (w *World) Connected() bool { return w.native != nil }

func (w *World) Spawn() Entity {
	w.warnStructural("spawn")
	var e Entity
	if w.native != nil {
		e = w.native.Create()
	} else {
		e = w.nextID
		w.nextID++
	}
	w.entities.add(e)
	return e
}

// Despawn removes e everywhere. Despawning an invalid entity is a no-op.
func (w *World) Despawn(e Entity) {
	known := w.entities.remove(e)
	if w.native != nil {
		if !known && !w.native.Valid(e) {
			return
		}
		w.native.Destroy(e)
	} else if !known {
		return
	}
	w.warnStructural("despawn")
	for _, store := range w.scripts {
		delete(store, e)
	}
}

func (w *World) Valid(e Entity) bool {
	if e.IsZero() {
		return false
	}
	if w.native != nil {
		return w.native.Valid(e)
	}
	return w.entities.has(e)
}

// Insert stores v for e, overwriting any previous value, and returns the
// stored value.
func (w *World) Insert(e Entity, v ComponentValue) (any, error) {
	c := v.Type
	if c == nil {
		return nil, fmt.Errorf("%w: insert without component definition", ErrProgrammer)
	}
	if !c.accepts(v.Value) {
		return nil, fmt.Errorf("%w: %s does not accept %T", ErrProgrammer, c.Name(), v.Value)
	}
	if !w.entities.has(e) {
		return nil, fmt.Errorf("insert %s on entity %d: %w", c.Name(), e, ErrEntityNotFound)
	}
	if c.Kind() == KindNative {
		if ops, ok := w.ops(c); ok {
			if w.iterating > 0 && !ops.Has(e) {
				w.warnStructural("insert " + c.Name())
			}
			ops.Add(e, v.Value)
		}
		return v.Value, nil
	}
	store := w.scripts[c.ID()]
	if store == nil {
		store = make(map[Entity]any, 64)
		w.scripts[c.ID()] = store
	}
	if _, exists := store[e]; !exists {
		w.warnStructural("insert " + c.Name())
	}
	store[e] = v.Value
	return v.Value, nil
}

// Get returns the value of c on e. A missing script component is an
// ErrComponentNotFound: callers check Has first when absence is expected.
func (w *World) Get(e Entity, c ComponentType) (any, error) {
	if c.Kind() == KindNative {
		ops, ok := w.ops(c)
		if !ok {
			return c.Default(), nil
		}
		return ops.Get(e), nil
	}
	v, ok := w.scripts[c.ID()][e]
	if !ok {
		return nil, componentNotFound(e, c)
	}
	return v, nil
}

func (w *World) Has(e Entity, c ComponentType) bool {
	if c.Kind() == KindNative {
		ops, ok := w.ops(c)
		return ok && ops.Has(e)
	}
	_, ok := w.scripts[c.ID()][e]
	return ok
}

func (w *World) Remove(e Entity, c ComponentType) {
	if !w.Has(e, c) {
		return
	}
	w.warnStructural("remove " + c.Name())
	if c.Kind() == KindNative {
		if ops, ok := w.ops(c); ok {
			ops.Remove(e)
		}
		return
	}
	delete(w.scripts[c.ID()], e)
}

// EntitiesWith scans every valid entity and keeps those holding all of
// required and with and none of without. There is no index: the scan is
// linear in the entity count and runs once per query iteration.
func (w *World) EntitiesWith(required, with, without []ComponentType) []Entity {
	out := make([]Entity, 0, 16)
outer:
	for _, e := range w.entities.order {
		for _, c := range required {
			if !w.Has(e, c) {
				continue outer
			}
		}
		for _, c := range with {
			if !w.Has(e, c) {
				continue outer
			}
		}
		for _, c := range without {
			if w.Has(e, c) {
				continue outer
			}
		}
		out = append(out, e)
	}
	return out
}

// ComponentsOf lists the registered components e currently holds.
func (w *World) ComponentsOf(e Entity) []ComponentType {
	var out []ComponentType
	for _, c := range w.registry.components {
		if w.Has(e, c) {
			out = append(out, c)
		}
	}
	return out
}

// SetParent forwards the relationship to the native registry, if any.
func (w *World) SetParent(child, parent Entity) {
	if w.native != nil {
		w.native.SetParent(child, parent)
	}
}

func (w *World) Len() int { return w.entities.len() }

// Entities returns a copy of the valid set in enumeration order.
func (w *World) Entities() []Entity { return w.entities.snapshot() }

// Clear despawns every entity.
func (w *World) Clear() {
	for _, e := range w.entities.snapshot() {
		w.Despawn(e)
	}
}

func (w *World) ops(c ComponentType) (NativeOps, bool) {
	if w.native == nil {
		return NativeOps{}, false
	}
	ops, ok := w.bindings[c.ID()]
	return ops, ok
}

func (w *World) warnStructural(op string) {
	if w.iterating > 0 {
		w.log.Warn("structural change during query iteration, use Commands",
			zap.String("op", op), zap.Int("depth", w.iterating))
	}
}

// Insert is the typed form of World.Insert: patches are applied over the default.
func Insert[T any](w *World, e Entity, c *Component[T], patches ...func(*T)) (T, error) {
	v := c.New(patches...)
	if _, err := w.Insert(e, v); err != nil {
		var zero T
		return zero, err
	}
	return v.Value.(T), nil
}

func Get[T any](w *World, e Entity, c *Component[T]) (T, error) {
	v, err := w.Get(e, c)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.cast(v), nil
}

// MustGet panics when e lacks c.
func MustGet[T any](w *World, e Entity, c *Component[T]) T {
	v, err := Get(w, e, c)
	if err != nil {
		panic(err)
	}
	return v
}
