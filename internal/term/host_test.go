package term

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/native"
)

type fixture struct {
	screen tcell.SimulationScreen
	app    *app.App
	clock  *app.MockClock
	defs   *component.Defs
	host   *Host
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(60, 12)
	t.Cleanup(screen.Fini)

	clock := app.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a := app.New(app.Options{Clock: clock}, nil)
	defs := component.Register(a.Registry())
	require.NoError(t, native.Install(a, native.NewStore(nil), defs))

	h := New(screen, a, defs, 5, nil)
	require.NoError(t, h.Install())
	return &fixture{screen: screen, app: a, clock: clock, defs: defs, host: h}
}

func (f *fixture) frame(t *testing.T) {
	t.Helper()
	f.clock.Advance(16 * time.Millisecond)
	require.NoError(t, f.app.Frame())
}

func rowText(s tcell.Screen, y int) string {
	cols, _ := s.Size()
	var b strings.Builder
	for x := range cols {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	w := f.app.World()
	for i, name := range []string{"ship", "rock"} {
		e := w.Spawn()
		_, err := ecs.Insert(w, e, f.defs.Name, func(n *component.Name) { n.Value = name })
		require.NoError(t, err)
		_, err = ecs.Insert(w, e, f.defs.LocalTransform, func(lt *component.LocalTransform) {
			lt.Position = component.Vec3{X: float64(i + 1), Y: 2}
		})
		require.NoError(t, err)
	}
	w.Spawn()

	require.NoError(t, f.app.Start())
	f.frame(t)

	hud := rowText(f.screen, 0)
	require.Contains(t, hud, "frame 1")
	require.Contains(t, hud, "running")
	require.Contains(t, hud, "entities 3")

	require.Contains(t, rowText(f.screen, 2), "ship (1.00, 2.00)")
	require.Contains(t, rowText(f.screen, 3), "rock (2.00, 2.00)")
	require.Empty(t, rowText(f.screen, 4))

	t.Run("paused frames still render", func(t *testing.T) {
		f.app.Pause()
		f.frame(t)
		require.Contains(t, rowText(f.screen, 0), "frame 2")
		require.Contains(t, rowText(f.screen, 0), "paused")
	})
}

func TestKeys(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Start())

	key := func(r rune) bool {
		return f.host.HandleEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}

	require.True(t, key(' '))
	f.frame(t)
	require.Equal(t, app.StatePaused, f.app.State())

	require.True(t, key('+'))
	f.frame(t)
	require.Equal(t, 2.0, f.app.Speed())

	require.True(t, key('-'))
	f.frame(t)
	require.Equal(t, 1.0, f.app.Speed())

	require.True(t, key(' '))
	f.frame(t)
	require.Equal(t, app.StateRunning, f.app.State())

	require.False(t, key('q'))
	require.NoError(t, f.app.Frame())
	require.Equal(t, uint64(4), f.app.Stats().Frame, "no frame after quit")
}

func TestDisplayWidth(t *testing.T) {
	require.Equal(t, 4, DisplayWidth("ship"))
	require.Equal(t, 4, DisplayWidth("飛船"))
	require.Equal(t, 2, DisplayWidth("ｱa"), "halfwidth katakana is narrow")
}
