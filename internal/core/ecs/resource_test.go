package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type gameState struct {
	Level int
	Name  string
}

func TestResources(t *testing.T) {
	reg := NewRegistry()
	state := RegisterResource(reg, "GameState", gameState{Level: 1, Name: "intro"})
	session := DeclareResource[string](reg, "Session")

	t.Run("Default materializes on first read", func(t *testing.T) {
		rs := NewResources()
		require.False(t, rs.Has(state))
		require.Equal(t, gameState{Level: 1, Name: "intro"}, MustGetResource(rs, state))
		require.True(t, rs.Has(state))
	})

	t.Run("Missing resource without default", func(t *testing.T) {
		rs := NewResources()
		_, err := GetResource(rs, session)
		require.ErrorIs(t, err, ErrResourceNotFound)
		require.ErrorIs(t, err, ErrProgrammer)
		require.Panics(t, func() { MustGetResource(rs, session) })

		InsertResource(rs, session, "abc")
		require.Equal(t, "abc", MustGetResource(rs, session))
	})

	t.Run("Insert checks the value type", func(t *testing.T) {
		rs := NewResources()
		err := rs.Insert(ResourceValue{Type: state, Value: "nope"})
		require.ErrorIs(t, err, ErrProgrammer)
	})

	t.Run("ResMut writes through", func(t *testing.T) {
		rs := NewResources()
		m := NewResMut(rs, state)
		require.NoError(t, m.Modify(func(s *gameState) { s.Level++ }))
		require.Equal(t, 2, MustGetResource(rs, state).Level)

		m.Set(gameState{Level: 9})
		got, err := m.Get()
		require.NoError(t, err)
		require.Equal(t, 9, got.Level)

		missing := NewResMut(rs, session)
		require.ErrorIs(t, missing.Modify(func(*string) {}), ErrResourceNotFound)
	})

	t.Run("Reset restores defaults", func(t *testing.T) {
		rs := NewResources()
		InsertResource(rs, state, gameState{Level: 4})
		rs.Reset()
		require.Equal(t, 1, MustGetResource(rs, state).Level)
	})

	t.Run("Lookup by name", func(t *testing.T) {
		got, ok := reg.ResourceByName("GameState")
		require.True(t, ok)
		require.Equal(t, state.ID(), got.ID())
		require.Len(t, reg.Resources(), 2)
	})
}
