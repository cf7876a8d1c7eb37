package ecs

import "fmt"

// NativeRegistry is the contract of the external component store. Component
// access is bound once per kind at Connect time instead of being looked up by
// name on every call.
type NativeRegistry interface {
	Create() Entity
	Destroy(e Entity)
	Valid(e Entity) bool
	SetParent(child, parent Entity)
	Bind(kind NativeKind) (NativeOps, bool)
}

// NativeOps carries the four accessors of one native component kind.
type NativeOps struct {
	Add    func(e Entity, v any)
	Get    func(e Entity) any
	Has    func(e Entity) bool
	Remove func(e Entity)
}

func (o NativeOps) complete() bool {
	return o.Add != nil && o.Get != nil && o.Has != nil && o.Remove != nil
}

// BindNative adapts typed accessors to NativeOps.
func BindNative[T any](
	add func(Entity, T),
	get func(Entity) T,
	has func(Entity) bool,
	remove func(Entity),
) NativeOps {
	return NativeOps{
		Add: func(e Entity, v any) {
			t, ok := v.(T)
			if !ok {
				panic(fmt.Sprintf("ecs: native add got %T", v))
			}
			add(e, t)
		},
		Get:    func(e Entity) any { return get(e) },
		Has:    has,
		Remove: remove,
	}
}
