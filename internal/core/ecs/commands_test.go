package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	t.Run("Nothing applies before Flush", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		cmds := NewCommands(w, NewResources())

		cmds.Spawn(d.position.New())
		require.Equal(t, 0, w.Len())
		require.Equal(t, 1, cmds.Len())

		require.NoError(t, cmds.Flush())
		require.Equal(t, 1, w.Len())
		require.Equal(t, 0, cmds.Len())
	})

	t.Run("Spawned builder accumulates inserts", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		cmds := NewCommands(w, NewResources())

		b := cmds.Spawn(d.position.New()).
			Insert(d.health.New(func(h *health) { h.HP = 5 }), d.marker.New()).
			Remove(d.marker)
		require.NoError(t, cmds.Flush())

		e := b.ID()
		require.True(t, w.Has(e, d.position))
		require.False(t, w.Has(e, d.marker))
		require.Equal(t, 5, MustGet(w, e, d.health).HP)
	})

	t.Run("Id taken before flush is stable and later commands target it", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		cmds := NewCommands(w, NewResources())

		id := cmds.Spawn().Insert(d.position.New()).ID()
		cmds.Entity(id).Insert(d.health.New())
		require.NoError(t, cmds.Flush())

		require.Equal(t, []Entity{id}, w.Entities())
		require.True(t, w.Has(id, d.position))
		require.True(t, w.Has(id, d.health))
	})

	t.Run("Commands run in queue order", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		e := w.Spawn()
		cmds := NewCommands(w, NewResources())

		cmds.Insert(e, d.position.New(func(p *position) { p.X = 1 }))
		cmds.Remove(e, d.position)
		cmds.Insert(e, d.position.New(func(p *position) { p.X = 3 }))
		require.NoError(t, cmds.Flush())
		require.Equal(t, 3.0, MustGet(w, e, d.position).X)

		cmds.Insert(e, d.health.New())
		cmds.Despawn(e)
		require.NoError(t, cmds.Flush())
		require.False(t, w.Valid(e))
	})

	t.Run("Despawn of a queued spawn", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		cmds := NewCommands(w, NewResources())

		cmds.Spawn(d.position.New()).Despawn()
		require.NoError(t, cmds.Flush())
		require.Equal(t, 0, w.Len())
	})

	t.Run("Errors are joined and later commands still run", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		cmds := NewCommands(w, NewResources())

		cmds.Insert(Entity(77), d.position.New())
		b := cmds.Spawn(d.health.New())
		err := cmds.Flush()
		require.ErrorIs(t, err, ErrEntityNotFound)
		require.True(t, w.Has(b.ID(), d.health))
	})

	t.Run("Resource inserts", func(t *testing.T) {
		d := newTestDefs()
		w := NewWorld(d.reg, nil)
		rs := NewResources()
		score := RegisterResource(d.reg, "Score", 0)
		cmds := NewCommands(w, rs)

		cmds.InsertResource(score.Value(12))
		require.False(t, rs.Has(score))
		require.NoError(t, cmds.Flush())
		require.Equal(t, 12, MustGetResource(rs, score))
	})
}
