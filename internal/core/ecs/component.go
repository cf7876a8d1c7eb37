package ecs

import "fmt"

// ComponentID is the identity token of a component definition.
type ComponentID uint64

// Kind tells where a component's values live.
type Kind uint8

const (
	KindScript Kind = iota // stored in the World's own maps
	KindNative             // stored in the connected NativeRegistry
)

func (k Kind) String() string {
	if k == KindNative {
		return "native"
	}
	return "script"
}

// ComponentType is the untyped view of a component definition. It is
// implemented only by *Component[T].
type ComponentType interface {
	ID() ComponentID
	Name() string
	Kind() Kind
	Native() NativeKind

	// Default returns a fresh copy of the default value.
	Default() any

	// DecodeWith copies the default and lets decode fill it in place, so
	// fields absent from the source keep their default values.
	DecodeWith(decode func(target any) error) (ComponentValue, error)

	accepts(v any) bool
	box(v any) any
	unbox(p any) any
}

// Component is an immutable component definition created once through a
// Registry and shared by every entity that carries it.
type Component[T any] struct {
	id     ComponentID
	name   string
	kind   Kind
	native NativeKind
	def    T
	clone  func(T) T
}

// ComponentOption customizes a definition at registration time.
type ComponentOption[T any] func(*Component[T])

// WithClone sets the copy function used for defaults holding maps, slices
// or pointers.
func WithClone[T any](fn func(T) T) ComponentOption[T] {
	return func(c *Component[T]) { c.clone = fn }
}

func (c *Component[T]) ID() ComponentID    { return c.id }
func (c *Component[T]) Name() string       { return c.name }
func (c *Component[T]) Kind() Kind         { return c.kind }
func (c *Component[T]) Native() NativeKind { return c.native }
func (c *Component[T]) Default() any       { return c.fresh() }

func (c *Component[T]) String() string {
	return fmt.Sprintf("%s(%s)", c.name, c.kind)
}

func (c *Component[T]) fresh() T {
	if c.clone != nil {
		return c.clone(c.def)
	}
	return c.def
}

// New merges patches over a copy of the default.
func (c *Component[T]) New(patches ...func(*T)) ComponentValue {
	v := c.fresh()
	for _, p := range patches {
		p(&v)
	}
	return ComponentValue{Type: c, Value: v}
}

// Value wraps a complete value.
func (c *Component[T]) Value(v T) ComponentValue {
	return ComponentValue{Type: c, Value: v}
}

func (c *Component[T]) DecodeWith(decode func(target any) error) (ComponentValue, error) {
	v := c.fresh()
	if err := decode(&v); err != nil {
		return ComponentValue{}, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return ComponentValue{Type: c, Value: v}, nil
}

func (c *Component[T]) accepts(v any) bool {
	_, ok := v.(T)
	return ok
}

func (c *Component[T]) box(v any) any {
	p := new(T)
	if t, ok := v.(T); ok {
		*p = t
	}
	return p
}

func (c *Component[T]) unbox(p any) any {
	if t, ok := p.(*T); ok && t != nil {
		return *t
	}
	return c.fresh()
}

func (c *Component[T]) cast(v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	return c.fresh()
}

// ComponentValue pairs a definition with a value of its type.
type ComponentValue struct {
	Type  ComponentType
	Value any
}

// NativeKind is the closed set of components backed by the native registry.
type NativeKind uint8

const (
	NativeNone NativeKind = iota
	NativeLocalTransform
	NativeWorldTransform
	NativeVelocity
	NativeSprite
	NativeCamera
	nativeKindCount
)

var nativeNames = [nativeKindCount]string{
	NativeNone:           "",
	NativeLocalTransform: "LocalTransform",
	NativeWorldTransform: "WorldTransform",
	NativeVelocity:       "Velocity",
	NativeSprite:         "Sprite",
	NativeCamera:         "Camera",
}

// String returns the native registry's name for the kind.
func (k NativeKind) String() string {
	if k >= nativeKindCount {
		return fmt.Sprintf("NativeKind(%d)", uint8(k))
	}
	return nativeNames[k]
}

// NativeKinds lists every bindable kind.
func NativeKinds() []NativeKind {
	kinds := make([]NativeKind, 0, nativeKindCount-1)
	for k := NativeNone + 1; k < nativeKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
