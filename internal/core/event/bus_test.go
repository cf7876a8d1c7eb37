package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	t.Run("Events are delivered one swap later", func(t *testing.T) {
		b := NewBus()
		var got []StateChanged
		Subscribe(b, func(ev StateChanged) { got = append(got, ev) })

		Emit(b, StateChanged{From: "idle", To: "running"})
		b.DispatchAll()
		require.Empty(t, got)

		b.SwapBuffers()
		b.DispatchAll()
		require.Equal(t, []StateChanged{{From: "idle", To: "running"}}, got)

		b.SwapBuffers()
		b.DispatchAll()
		require.Len(t, got, 1)
	})

	t.Run("Handlers only see their own type", func(t *testing.T) {
		b := NewBus()
		failures, changes := 0, 0
		Subscribe(b, func(SystemFailed) { failures++ })
		Subscribe(b, func(StateChanged) { changes++ })
		Subscribe(b, func(StateChanged) { changes++ })

		Emit(b, SystemFailed{System: "a"})
		Emit(b, SystemFailed{System: "b"})
		Emit(b, StateChanged{})
		b.SwapBuffers()
		b.DispatchAll()

		require.Equal(t, 2, failures)
		require.Equal(t, 2, changes)
		require.Len(t, Pending[SystemFailed](b), 2)
		require.Empty(t, Pending[SpeedChanged](b))
	})

	t.Run("Emitting from a handler lands in the next frame", func(t *testing.T) {
		b := NewBus()
		speeds := 0
		Subscribe(b, func(StateChanged) { Emit(b, SpeedChanged{Speed: 2}) })
		Subscribe(b, func(SpeedChanged) { speeds++ })

		Emit(b, StateChanged{})
		b.SwapBuffers()
		b.DispatchAll()
		require.Equal(t, 0, speeds)

		b.SwapBuffers()
		b.DispatchAll()
		require.Equal(t, 1, speeds)
	})
}
