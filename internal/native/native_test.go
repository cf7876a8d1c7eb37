package native

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
)

func TestPool(t *testing.T) {
	p := newPool()
	a := p.create()
	b := p.create()
	require.False(t, a.IsZero())
	require.NotEqual(t, a, b)
	require.True(t, p.valid(a))

	require.True(t, p.destroy(a))
	require.False(t, p.valid(a))
	require.False(t, p.destroy(a), "stale ids are ignored")

	c := p.create()
	idxA, genA, _ := slotOf(a)
	idxC, genC, _ := slotOf(c)
	require.Equal(t, idxA, idxC, "slot is recycled")
	require.Equal(t, genA+1, genC)
	require.NotEqual(t, a, c)
	require.False(t, p.valid(a))
	require.Equal(t, 2, p.live)

	require.False(t, p.valid(ecs.InvalidEntity))
	require.False(t, p.valid(ecs.Entity(1<<40|99)))
}

func connected(t *testing.T) (*ecs.World, *Store, *component.Defs) {
	t.Helper()
	reg := ecs.NewRegistry()
	defs := component.Register(reg)
	w := ecs.NewWorld(reg, nil)
	s := NewStore(nil)
	require.NoError(t, w.Connect(s))
	return w, s, defs
}

func TestStoreThroughWorld(t *testing.T) {
	w, s, defs := connected(t)

	e := w.Spawn()
	require.True(t, s.Valid(e))

	_, err := ecs.Insert(w, e, defs.Sprite, func(sp *component.Sprite) { sp.Texture = "hero.png" })
	require.NoError(t, err)
	require.True(t, w.Has(e, defs.Sprite))
	sp := ecs.MustGet(w, e, defs.Sprite)
	require.Equal(t, "hero.png", sp.Texture)
	require.Equal(t, component.White, sp.Color)

	_, err = ecs.Insert(w, e, defs.Name, func(n *component.Name) { n.Value = "hero" })
	require.NoError(t, err)

	w.Remove(e, defs.Sprite)
	require.False(t, w.Has(e, defs.Sprite))

	_, _ = ecs.Insert(w, e, defs.Camera)
	w.Despawn(e)
	require.False(t, s.Valid(e))
	require.False(t, s.camera.has(e))
	require.False(t, w.Has(e, defs.Name))
	require.Zero(t, s.Len())
}

func TestHierarchy(t *testing.T) {
	w, s, _ := connected(t)
	root := w.Spawn()
	mid := w.Spawn()
	leaf := w.Spawn()

	w.SetParent(mid, root)
	w.SetParent(leaf, mid)
	require.Equal(t, root, s.Parent(mid))
	require.Equal(t, []ecs.Entity{leaf}, s.Children(mid))

	w.SetParent(root, leaf)
	require.True(t, s.Parent(root).IsZero(), "cycles are refused")

	w.SetParent(leaf, root)
	require.Equal(t, root, s.Parent(leaf))
	require.Empty(t, s.Children(mid))
	require.Equal(t, []ecs.Entity{mid, leaf}, s.Children(root))

	w.Despawn(root)
	require.True(t, s.Parent(mid).IsZero())
	require.True(t, s.Valid(leaf))

	w.SetParent(leaf, mid)
	w.SetParent(leaf, ecs.InvalidEntity)
	require.True(t, s.Parent(leaf).IsZero())
}

func TestUpdateTransforms(t *testing.T) {
	w, s, defs := connected(t)
	parent := w.Spawn()
	child := w.Spawn()
	w.SetParent(child, parent)

	_, _ = ecs.Insert(w, parent, defs.LocalTransform, func(lt *component.LocalTransform) {
		lt.Position = component.Vec3{X: 10}
		lt.Rotation = component.AxisAngle(component.Vec3{Z: 1}, math.Pi/2)
		lt.Scale = component.Vec3{X: 2, Y: 2, Z: 2}
	})
	_, _ = ecs.Insert(w, child, defs.LocalTransform, func(lt *component.LocalTransform) {
		lt.Position = component.Vec3{X: 1}
	})

	s.UpdateTransforms()

	pw := ecs.MustGet(w, parent, defs.WorldTransform)
	require.True(t, pw.Position.ApproxEqual(component.Vec3{X: 10}))

	cw := ecs.MustGet(w, child, defs.WorldTransform)
	require.InDelta(t, 10, cw.Position.X, 1e-9)
	require.InDelta(t, 2, cw.Position.Y, 1e-9)
	require.Equal(t, component.Vec3{X: 2, Y: 2, Z: 2}, cw.Scale)
	require.InDelta(t, math.Pi/2, cw.Rotation.Angle2D(), 1e-9)
}

func TestIntegrate(t *testing.T) {
	w, s, defs := connected(t)
	moving := w.Spawn()
	pinned := w.Spawn()
	for _, e := range []ecs.Entity{moving, pinned} {
		_, _ = ecs.Insert(w, e, defs.LocalTransform)
		_, _ = ecs.Insert(w, e, defs.Velocity, func(v *component.Velocity) {
			v.Linear = component.Vec3{X: 2, Y: -1}
			v.Angular = component.Vec3{Z: math.Pi}
		})
	}
	_, _ = ecs.Insert(w, pinned, defs.Static)

	s.Integrate(500*time.Millisecond, func(e ecs.Entity) bool { return w.Has(e, defs.Static) })

	lt := ecs.MustGet(w, moving, defs.LocalTransform)
	require.True(t, lt.Position.ApproxEqual(component.Vec3{X: 1, Y: -0.5}))
	require.InDelta(t, math.Pi/2, lt.Rotation.Angle2D(), 1e-9)

	require.Equal(t, component.Vec3{}, ecs.MustGet(w, pinned, defs.LocalTransform).Position)
}

func TestInstall(t *testing.T) {
	clock := app.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a := app.New(app.Options{FixedTimestep: 10 * time.Millisecond, Clock: clock}, nil)
	defs := component.Register(a.Registry())
	s := NewStore(nil)
	require.NoError(t, Install(a, s, defs))

	w := a.World()
	e := w.Spawn()
	_, _ = ecs.Insert(w, e, defs.LocalTransform)
	_, _ = ecs.Insert(w, e, defs.Velocity, func(v *component.Velocity) { v.Linear = component.Vec3{X: 1} })

	require.NoError(t, a.Start())
	clock.Advance(30 * time.Millisecond)
	require.NoError(t, a.Frame())

	wt := ecs.MustGet(w, e, defs.WorldTransform)
	require.InDelta(t, 0.03, wt.Position.X, 1e-9)

	require.ErrorIs(t, Install(a, NewStore(nil), defs), ecs.ErrWorldNotEmpty)
}
