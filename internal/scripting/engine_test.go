package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
)

type fixture struct {
	app   *app.App
	clock *app.MockClock
	eng   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := app.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a := app.New(app.Options{FixedTimestep: 10 * time.Millisecond, Clock: clock}, nil)
	eng := NewEngine(a, nil)
	t.Cleanup(eng.Close)
	return &fixture{app: a, clock: clock, eng: eng}
}

func (f *fixture) frame(t *testing.T, d time.Duration) {
	t.Helper()
	f.clock.Advance(d)
	require.NoError(t, f.app.Frame())
}

func (f *fixture) global(name string) lua.LValue { return f.eng.vm.GetGlobal(name) }

func TestComponent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("health.lua", `component("Health", { hp = 10, regen = 2 })`))

	c, ok := f.eng.Component("Health")
	require.True(t, ok)
	require.Equal(t, ecs.KindScript, c.Kind())

	w := f.app.World()
	a, b := w.Spawn(), w.Spawn()
	_, err := ecs.Insert(w, a, c)
	require.NoError(t, err)
	_, err = ecs.Insert(w, b, c)
	require.NoError(t, err)

	ecs.MustGet(w, a, c)["hp"] = 1.0
	require.EqualValues(t, 10, ecs.MustGet(w, b, c)["hp"], "defaults are not shared")

	t.Run("duplicate", func(t *testing.T) {
		err := f.eng.LoadString("again.lua", `component("Health", {})`)
		require.ErrorContains(t, err, "already registered")
	})
}

func TestMutableQuery(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("regen.lua", `
component("Health", { hp = 10, regen = 2 })
component("Shield", { value = 5 })

system{
  name = "regen",
  query = { mut("Health"), "Shield" },
  run = function(e, h, s, dt)
    h.hp = h.hp + h.regen
    s.value = 0
  end,
}
`))
	require.Equal(t, []string{"regen"}, f.eng.Systems())

	health, _ := f.eng.Component("Health")
	shield, _ := f.eng.Component("Shield")
	w := f.app.World()
	e := w.Spawn()
	_, _ = ecs.Insert(w, e, health)
	_, _ = ecs.Insert(w, e, shield)
	bare := w.Spawn()
	_, _ = ecs.Insert(w, bare, health)

	require.NoError(t, f.app.Start())
	f.frame(t, 16*time.Millisecond)
	f.frame(t, 16*time.Millisecond)

	require.EqualValues(t, 14, ecs.MustGet(w, e, health)["hp"])
	require.EqualValues(t, 5, ecs.MustGet(w, e, shield)["value"], "read terms are not written back")
	require.EqualValues(t, 10, ecs.MustGet(w, bare, health)["hp"], "entities without Shield do not match")
}

func TestFieldRemoval(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("buff.lua", `
component("Buff", { power = 3, expires = 1 })
system{
  name = "expire",
  query = { mut("Buff") },
  run = function(e, b) b.expires = nil end,
}
`))
	buff, _ := f.eng.Component("Buff")
	w := f.app.World()
	e := w.Spawn()
	_, _ = ecs.Insert(w, e, buff)

	require.NoError(t, f.app.Start())
	f.frame(t, 16*time.Millisecond)

	got := ecs.MustGet(w, e, buff)
	require.NotContains(t, got, "expires")
	require.EqualValues(t, 3, got["power"])
}

func TestDeltaTime(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("time.lua", `
fixed, variable = 0, 0
system{ name = "fixed", schedule = "FixedUpdate", run = function(dt) fixed = fixed + dt end }
system{ name = "variable", run = function(dt) variable = variable + dt end }
`))
	require.NoError(t, f.app.Start())
	f.frame(t, 30*time.Millisecond)

	require.InDelta(t, 0.03, float64(f.global("fixed").(lua.LNumber)), 1e-9)
	require.InDelta(t, 0.03, float64(f.global("variable").(lua.LNumber)), 1e-9)
}

func TestOrdering(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("order.lua", `
order = {}
system{ name = "b", after = "a", run = function() table.insert(order, "b") end }
system{ name = "a", run = function() table.insert(order, "a") end }
system{ name = "c", before = { "a", "b" }, run = function() table.insert(order, "c") end }
`))
	require.NoError(t, f.app.Start())
	f.frame(t, 16*time.Millisecond)

	got := fromLua(f.global("order"))
	require.Equal(t, []any{"c", "a", "b"}, got)
}

func TestCommands(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("bullets.lua", `
component("Bullet", { ttl = 2 })

system{
  name = "fire",
  schedule = "Startup",
  commands = true,
  run = function(dt)
    spawn{ Bullet = { ttl = 1 } }
    spawn{ Bullet = {} }
  end,
}

system{
  name = "expire",
  query = { mut("Bullet") },
  commands = true,
  run = function(e, b, dt)
    b.ttl = b.ttl - 1
    if b.ttl <= 0 then despawn(e) end
  end,
}
`))
	require.NoError(t, f.app.Start())
	require.Equal(t, 2, f.app.World().Len())

	f.frame(t, 16*time.Millisecond)
	require.Equal(t, 1, f.app.World().Len())

	f.frame(t, 16*time.Millisecond)
	require.Zero(t, f.app.World().Len())

	t.Run("outside a system", func(t *testing.T) {
		err := f.eng.LoadString("stray.lua", `spawn{ Bullet = {} }`)
		require.ErrorContains(t, err, "outside a system")
	})
}

func TestRuntimeErrorsAreIsolated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.LoadString("bad.lua", `
ran = 0
system{ name = "broken", run = function() error("boom") end }
system{ name = "fine", after = "broken", run = function() ran = ran + 1 end }
`))
	require.NoError(t, f.app.Start())
	f.frame(t, 16*time.Millisecond)

	require.EqualValues(t, 1, f.global("ran"))
	require.EqualValues(t, 1, f.app.Stats().Failures)
}

func TestDeclarationErrors(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"missing name":      {`system{ run = function() end }`, "needs a name"},
		"unknown schedule":  {`system{ name = "x", schedule = "Sometimes", run = function() end }`, "unknown schedule"},
		"missing run":       {`system{ name = "x" }`, "run must be a function"},
		"unknown component": {`system{ name = "x", query = { "Ghost" }, run = function() end }`, "unknown component"},
		"syntax":            {`system{`, "compile"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			err := f.eng.LoadString(name, tc.src)
			require.ErrorContains(t, err, tc.want)
			require.Empty(t, f.eng.Systems())
		})
	}
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_components.lua"), []byte(`component("Counter", { n = 0 })`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02_systems.lua"), []byte(`
system{ name = "count", query = { mut("Counter") }, run = function(e, c) c.n = c.n + 1 end }
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644))

	f := newFixture(t)
	require.NoError(t, f.app.Preload(context.Background(), f.eng.Loader(dir)))
	require.Equal(t, []string{"count"}, f.eng.Systems())

	t.Run("missing directory", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.eng.LoadDir(filepath.Join(dir, "nope")))
		require.Empty(t, f.eng.Systems())
	})
}
