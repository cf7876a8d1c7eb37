package system

import (
	"fmt"
	"reflect"

	"github.com/esengine/microes-sub003/internal/core/ecs"
)

// Param describes one argument a system receives. The set is closed: only
// the constructors in this file produce Params.
type Param interface {
	resolve(s *scope) (any, error)
}

// scope carries what parameters resolve against during a single run.
type scope struct {
	world     *ecs.World
	resources *ecs.Resources
	cmds      *ecs.Commands
}

func (s *scope) commands() *ecs.Commands {
	if s.cmds == nil {
		s.cmds = ecs.NewCommands(s.world, s.resources)
	}
	return s.cmds
}

type queryParam struct{ q *ecs.Query }

func (p queryParam) resolve(s *scope) (any, error) {
	if p.q == nil {
		return nil, fmt.Errorf("%w: nil query", ErrUnknownParam)
	}
	return p.q.Bind(s.world), nil
}

type resParam struct{ r ecs.ResourceType }

func (p resParam) resolve(s *scope) (any, error) {
	if p.r == nil {
		return nil, fmt.Errorf("%w: nil resource", ErrUnknownParam)
	}
	return s.resources.Get(p.r)
}

type resMutParam struct {
	r    ecs.ResourceType
	make func(*ecs.Resources) any
}

func (p resMutParam) resolve(s *scope) (any, error) {
	if p.make == nil {
		return nil, fmt.Errorf("%w: nil resource", ErrUnknownParam)
	}
	return p.make(s.resources), nil
}

type cmdsParam struct{}

func (cmdsParam) resolve(s *scope) (any, error) { return s.commands(), nil }

// QueryOf passes a QueryInstance for q bound to the App's World.
func QueryOf(q *ecs.Query) Param { return queryParam{q: q} }

// Res passes the current value of r.
func Res(r ecs.ResourceType) Param {
	if v := reflect.ValueOf(r); v.Kind() == reflect.Pointer && v.IsNil() {
		r = nil
	}
	return resParam{r: r}
}

// ResMut passes an *ecs.ResMut[T] whose writes land in the store immediately.
func ResMut[T any](r *ecs.Resource[T]) Param {
	if r == nil {
		return resMutParam{}
	}
	return resMutParam{r: r, make: func(rs *ecs.Resources) any { return ecs.NewResMut(rs, r) }}
}

// Cmds passes the run's *ecs.Commands. Several Cmds params share one buffer.
func Cmds() Param { return cmdsParam{} }

// In holds the resolved parameters of one run. It must not be retained
// after the body returns.
type In struct {
	params []Param
	args   []any
	cmds   *ecs.Commands
}

func (in *In) Len() int { return len(in.args) }

// Arg returns the resolved value of parameter i.
func (in *In) Arg(i int) any { return in.args[i] }

// Query returns the instance resolved for q.
func (in *In) Query(q *ecs.Query) *ecs.QueryInstance {
	for i, p := range in.params {
		if qp, ok := p.(queryParam); ok && qp.q == q {
			return in.args[i].(*ecs.QueryInstance)
		}
	}
	panic(fmt.Sprintf("system: query %p is not a declared parameter", q))
}

// Commands returns the run's command buffer.
func (in *In) Commands() *ecs.Commands {
	if in.cmds == nil {
		panic("system: Cmds() is not a declared parameter")
	}
	return in.cmds
}

// ResOf returns the value resolved for r.
func ResOf[T any](in *In, r *ecs.Resource[T]) T {
	for i, p := range in.params {
		if rp, ok := p.(resParam); ok && rp.r.ID() == r.ID() {
			return in.args[i].(T)
		}
	}
	panic(fmt.Sprintf("system: resource %s is not a declared parameter", r.Name()))
}

// ResMutOf returns the mutation handle resolved for r.
func ResMutOf[T any](in *In, r *ecs.Resource[T]) *ecs.ResMut[T] {
	for i, p := range in.params {
		if rp, ok := p.(resMutParam); ok && rp.r.ID() == r.ID() {
			return in.args[i].(*ecs.ResMut[T])
		}
	}
	panic(fmt.Sprintf("system: mutable resource %s is not a declared parameter", r.Name()))
}
