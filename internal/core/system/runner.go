package system

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/core/ecs"
)

// ErrUnknownParam is returned for a nil or unresolvable parameter. It is a
// programmer error and stops the App.
var ErrUnknownParam = fmt.Errorf("%w: unknown system parameter", ecs.ErrProgrammer)

// PanicError is a system body panic turned into an error.
type PanicError struct {
	System string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("system %s panicked: %v", e.System, e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Runner holds the systems of every schedule and executes them one at a
// time against a World and its Resources.
type Runner struct {
	world     *ecs.World
	resources *ecs.Resources
	log       *zap.Logger

	systems [ScheduleCount][]*Def
	ordered [ScheduleCount][]*Def
	sorted  [ScheduleCount]bool
}

func NewRunner(w *ecs.World, rs *ecs.Resources, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{world: w, resources: rs, log: log}
}

// Add registers d under s. Ordering hints are applied lazily on the next
// Systems call.
func (r *Runner) Add(s Schedule, d *Def) error {
	if !s.Valid() {
		return fmt.Errorf("%w: invalid schedule %d", ecs.ErrProgrammer, s)
	}
	if d == nil || d.Fn == nil {
		return fmt.Errorf("%w: system without body in %s", ecs.ErrProgrammer, s)
	}
	r.systems[s] = append(r.systems[s], d)
	r.sorted[s] = false
	return nil
}

// Systems returns the run order of s.
func (r *Runner) Systems(s Schedule) []*Def {
	r.ensureSorted(s)
	return r.ordered[s]
}

// Len reports the number of registered systems across all schedules.
func (r *Runner) Len() int {
	n := 0
	for _, defs := range r.systems {
		n += len(defs)
	}
	return n
}

func (r *Runner) ensureSorted(s Schedule) {
	if r.sorted[s] {
		return
	}
	ordered, diags := Order(r.systems[s])
	for _, d := range diags {
		r.log.Warn("system ordering", zap.String("schedule", s.String()), zap.String("detail", d))
	}
	r.ordered[s] = ordered
	r.sorted[s] = true
}

// Run resolves d's parameters, calls its body and flushes its Commands.
// Commands are dropped when the body fails so a failed run leaves no
// structural trace.
func (r *Runner) Run(d *Def) error {
	in, err := r.resolve(d)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", d.Name, err)
	}
	if err := invoke(d, in); err != nil {
		return err
	}
	if in.cmds != nil {
		if err := in.cmds.Flush(); err != nil {
			return fmt.Errorf("flush commands of %s: %w", d.Name, err)
		}
	}
	return nil
}

func (r *Runner) resolve(d *Def) (*In, error) {
	sc := &scope{world: r.world, resources: r.resources}
	in := &In{params: d.Params, args: make([]any, len(d.Params))}
	for i, p := range d.Params {
		if p == nil {
			return nil, fmt.Errorf("param %d: %w", i, ErrUnknownParam)
		}
		v, err := p.resolve(sc)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		in.args[i] = v
	}
	in.cmds = sc.cmds
	return in, nil
}

func invoke(d *Def, in *In) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{System: d.Name, Value: p, Stack: debug.Stack()}
		}
	}()
	return d.Fn(in)
}
