package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

// luaSystem adapts a Lua run function to a system body. With a query the
// function is called once per match as run(entity, values..., dt); without
// one it is called once per run as run(dt). Tables of mutable terms are
// written back after each call.
type luaSystem struct {
	engine   *Engine
	name     string
	fn       *lua.LFunction
	query    *ecs.Query
	muts     []bool
	fixed    bool
	commands bool
}

func (s *luaSystem) run(in *system.In) error {
	e := s.engine
	dt := system.ResOf(in, e.app.TimeRes()).Delta
	if s.fixed {
		dt = system.ResOf(in, e.app.FixedRes()).Timestep
	}
	if s.commands {
		e.cmds = in.Commands()
		defer func() { e.cmds = nil }()
	}
	dtv := lua.LNumber(dt.Seconds())

	if s.query == nil {
		return s.call(dtv)
	}
	for ent, row := range in.Query(s.query).All() {
		args := make([]lua.LValue, 0, row.Len()+2)
		args = append(args, lua.LNumber(ent))
		for i := 0; i < row.Len(); i++ {
			v, err := plain(row.At(i))
			if err != nil {
				return fmt.Errorf("lua system %s: entity %d: %w", s.name, ent, err)
			}
			args = append(args, toLua(e.vm, v))
		}
		args = append(args, dtv)

		if err := s.call(args...); err != nil {
			return err
		}
		for i, mut := range s.muts {
			if !mut {
				continue
			}
			target := row.At(i)
			if f, ok := target.(*Fields); ok {
				// fields set to nil in Lua are dropped
				*f = Fields{}
			}
			if err := assign(target, fromLua(args[i+1])); err != nil {
				return fmt.Errorf("lua system %s: write back entity %d: %w", s.name, ent, err)
			}
		}
	}
	return nil
}

func (s *luaSystem) call(args ...lua.LValue) error {
	if err := s.engine.vm.CallByParam(lua.P{Fn: s.fn, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("lua system %s: %w", s.name, err)
	}
	return nil
}
