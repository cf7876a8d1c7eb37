package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

// Engine wraps a single gopher-lua VM. Scripts declare components with
// component(name, defaults) and systems with system{...}; both register
// into the App. Single-goroutine access only (the loop goroutine).
type Engine struct {
	vm  *lua.LState
	app *app.App
	log *zap.Logger

	components map[string]*ecs.Component[Fields]
	systems    []string

	// commands of the system currently running, for spawn/despawn
	cmds *ecs.Commands
}

// NewEngine creates a Lua VM bound to a.
func NewEngine(a *app.App, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:         vm,
		app:        a,
		log:        log,
		components: make(map[string]*ecs.Component[Fields]),
	}
	vm.SetGlobal("component", vm.NewFunction(e.luaComponent))
	vm.SetGlobal("system", vm.NewFunction(e.luaSystem))
	vm.SetGlobal("mut", vm.NewFunction(luaMut))
	vm.SetGlobal("spawn", vm.NewFunction(e.luaSpawn))
	vm.SetGlobal("despawn", vm.NewFunction(e.luaDespawn))
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

func (e *Engine) Close() { e.vm.Close() }

// Component returns the definition a script declared under name.
func (e *Engine) Component(name string) (*ecs.Component[Fields], bool) {
	c, ok := e.components[name]
	return c, ok
}

// Systems lists the names of script systems in registration order.
func (e *Engine) Systems() []string { return append([]string(nil), e.systems...) }

// LoadString runs one chunk.
func (e *Engine) LoadString(name, src string) error {
	fn, err := e.vm.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}

// LoadDir loads all .lua files in dir in name order. A missing dir is not
// an error.
func (e *Engine) LoadDir(dir string) error {
	sources, err := readDir(dir)
	if err != nil {
		return err
	}
	return e.loadSources(sources)
}

type source struct {
	path string
	body string
}

func readDir(dir string) ([]source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, source{path: path, body: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func (e *Engine) loadSources(sources []source) error {
	for _, src := range sources {
		if err := e.LoadString(src.path, src.body); err != nil {
			return fmt.Errorf("load %s: %w", src.path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", src.path))
	}
	return nil
}

// Loader reads dir off the loop goroutine; the scripts themselves run when
// the App applies preload results, so registration happens on the loop
// goroutine.
func (e *Engine) Loader(dir string) app.Loader {
	return func(context.Context) (func(*app.App) error, error) {
		sources, err := readDir(dir)
		if err != nil {
			return nil, err
		}
		return func(*app.App) error { return e.loadSources(sources) }, nil
	}
}

// component(name, defaults)
func (e *Engine) luaComponent(L *lua.LState) int {
	name := L.CheckString(1)
	defaults := L.OptTable(2, L.NewTable())

	reg := e.app.Registry()
	if _, dup := reg.ComponentByName(name); dup {
		L.RaiseError("component %q already registered", name)
		return 0
	}
	def := Fields{}
	if m, ok := fromLua(defaults).(map[string]any); ok {
		def = Fields(m)
	}
	c := ecs.RegisterComponent(reg, name, def, ecs.WithClone(cloneFields))
	e.components[name] = c
	e.log.Debug("script component", zap.String("name", name), zap.Int("fields", len(def)))
	return 0
}

// mut(name) marks a query term as mutable.
func luaMut(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("mut", lua.LString(L.CheckString(1)))
	L.Push(t)
	return 1
}

// system{ name=, schedule=, before=, after=, query={...}, commands=, run= }
func (e *Engine) luaSystem(L *lua.LState) int {
	spec := L.CheckTable(1)
	name := lua.LVAsString(spec.RawGetString("name"))
	if name == "" {
		L.RaiseError("system needs a name")
		return 0
	}
	sched := system.Update
	if s := lua.LVAsString(spec.RawGetString("schedule")); s != "" {
		var ok bool
		if sched, ok = system.ParseSchedule(s); !ok {
			L.RaiseError("system %s: unknown schedule %q", name, s)
			return 0
		}
	}
	run, ok := spec.RawGetString("run").(*lua.LFunction)
	if !ok {
		L.RaiseError("system %s: run must be a function", name)
		return 0
	}

	terms, muts, err := e.queryTerms(spec.RawGetString("query"))
	if err != nil {
		L.RaiseError("system %s: %s", name, err.Error())
		return 0
	}

	ls := &luaSystem{engine: e, name: name, fn: run, fixed: sched.Fixed(), muts: muts}
	params := []system.Param{system.Res(e.app.TimeRes()), system.Res(e.app.FixedRes())}
	if len(terms) > 0 {
		ls.query = ecs.NewQuery(terms...)
		params = append(params, system.QueryOf(ls.query))
	}
	if lua.LVAsBool(spec.RawGetString("commands")) {
		params = append(params, system.Cmds())
		ls.commands = true
	}

	opts := []system.Option{
		system.RunBefore(stringList(spec.RawGetString("before"))...),
		system.RunAfter(stringList(spec.RawGetString("after"))...),
	}
	def := system.Define(name, params, ls.run, opts...)
	if err := e.app.AddSystem(sched, def); err != nil {
		L.RaiseError("system %s: %s", name, err.Error())
		return 0
	}
	e.systems = append(e.systems, name)
	return 0
}

func (e *Engine) queryTerms(v lua.LValue) ([]ecs.Term, []bool, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, nil, nil
	}
	reg := e.app.Registry()
	var terms []ecs.Term
	var muts []bool
	var err error
	t.ForEach(func(_, item lua.LValue) {
		if err != nil {
			return
		}
		name, mutable := "", false
		switch item := item.(type) {
		case lua.LString:
			name = string(item)
		case *lua.LTable:
			name, mutable = lua.LVAsString(item.RawGetString("mut")), true
		}
		c, found := reg.ComponentByName(name)
		if !found {
			err = fmt.Errorf("unknown component %q in query", name)
			return
		}
		if mutable {
			terms = append(terms, ecs.Mut(c))
			muts = append(muts, true)
			return
		}
		term, ok := c.(ecs.Term)
		if !ok {
			err = fmt.Errorf("component %q cannot be queried", name)
			return
		}
		terms = append(terms, term)
		muts = append(muts, false)
	})
	return terms, muts, err
}

// spawn{ Name = {value = "x"}, ... } queues a new entity.
func (e *Engine) luaSpawn(L *lua.LState) int {
	if e.cmds == nil {
		L.RaiseError("spawn outside a system with commands = true")
		return 0
	}
	body := L.CheckTable(1)
	reg := e.app.Registry()
	var values []ecs.ComponentValue
	var err error
	body.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		name := lua.LVAsString(k)
		c, ok := reg.ComponentByName(name)
		if !ok {
			err = fmt.Errorf("unknown component %q", name)
			return
		}
		fields := fromLua(v)
		cv, derr := c.DecodeWith(func(target any) error { return assign(target, fields) })
		if derr != nil {
			err = derr
			return
		}
		values = append(values, cv)
	})
	if err != nil {
		L.RaiseError("spawn: %s", err.Error())
		return 0
	}
	e.cmds.Spawn(values...)
	return 0
}

func (e *Engine) luaDespawn(L *lua.LState) int {
	if e.cmds == nil {
		L.RaiseError("despawn outside a system with commands = true")
		return 0
	}
	e.cmds.Despawn(ecs.Entity(L.CheckNumber(1)))
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func stringList(v lua.LValue) []string {
	switch v := v.(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		v.ForEach(func(_, x lua.LValue) { out = append(out, lua.LVAsString(x)) })
		return out
	default:
		return nil
	}
}
