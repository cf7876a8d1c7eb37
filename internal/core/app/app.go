package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/event"
	"github.com/esengine/microes-sub003/internal/core/system"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options tunes the frame loop.
type Options struct {
	FixedTimestep time.Duration
	MaxDelta      time.Duration
	MaxFixedSteps int
	Speed         float64
	DevMode       bool

	Clock        Clock
	Pump         Pump
	ErrorHandler ErrorHandler
}

func DefaultOptions() Options {
	return Options{
		FixedTimestep: time.Second / 60,
		MaxDelta:      100 * time.Millisecond,
		MaxFixedSteps: 8,
		Speed:         1,
	}
}

// Stats is a snapshot of the loop, read by the inspector and the HUD.
type Stats struct {
	Frame      uint64        `json:"frame"`
	State      string        `json:"state"`
	Speed      float64       `json:"speed"`
	Delta      time.Duration `json:"delta_ns"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	FrameTime  time.Duration `json:"frame_time_ns"`
	FixedSteps int           `json:"fixed_steps"`
	Entities   int           `json:"entities"`
	Systems    int           `json:"systems"`
	Failures   uint64        `json:"failures"`
}

// Loader runs off the loop goroutine during Preload. The returned apply
// function runs on the loop goroutine afterwards, in loader order.
type Loader func(ctx context.Context) (apply func(*App) error, err error)

// App owns a World, its Resources and the system lists, and drives frames.
// Everything except Send and Quit must be called from the loop goroutine.
type App struct {
	opts     Options
	log      *zap.Logger
	registry *ecs.Registry
	world    *ecs.World
	res      *ecs.Resources
	runner   *system.Runner
	bus      *event.Bus

	timeRes  *ecs.Resource[Time]
	fixedRes *ecs.Resource[FixedTime]

	state       State
	quit        atomic.Bool
	controls    chan Control
	stepPending bool
	speed       float64

	last        time.Time
	accumulator time.Duration
	frame       uint64
	failures    uint64
	started     bool

	stats atomic.Pointer[Stats]
}

func New(opts Options, log *zap.Logger) *App {
	def := DefaultOptions()
	if opts.FixedTimestep <= 0 {
		opts.FixedTimestep = def.FixedTimestep
	}
	if opts.MaxDelta <= 0 {
		opts.MaxDelta = def.MaxDelta
	}
	if opts.MaxFixedSteps <= 0 {
		opts.MaxFixedSteps = def.MaxFixedSteps
	}
	if opts.Speed <= 0 {
		opts.Speed = def.Speed
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = DefaultErrorHandler(log, opts.DevMode)
	}

	reg := ecs.NewRegistry()
	world := ecs.NewWorld(reg, log)
	res := ecs.NewResources()
	a := &App{
		opts:     opts,
		log:      log,
		registry: reg,
		world:    world,
		res:      res,
		runner:   system.NewRunner(world, res, log),
		bus:      event.NewBus(),
		controls: make(chan Control, 64),
		speed:    opts.Speed,
	}
	a.timeRes = ecs.RegisterResource(reg, "Time", Time{Speed: opts.Speed})
	a.fixedRes = ecs.RegisterResource(reg, "FixedTime", FixedTime{Timestep: opts.FixedTimestep})
	a.stats.Store(&Stats{State: StateIdle.String(), Speed: opts.Speed})
	return a
}

func (a *App) Registry() *ecs.Registry { return a.registry }
func (a *App) World() *ecs.World { return a.world }
func (a *App) Resources() *ecs.Resources { return a.res }
func (a *App) Runner() *system.Runner { return a.runner }
func (a *App) Bus() *event.Bus { return a.bus }
func (a *App) Logger() *zap.Logger { return a.log }
func (a *App) State() State { return a.state }
func (a *App) Speed() float64 { return a.speed }
func (a *App) TimeRes() *ecs.Resource[Time] { return a.timeRes }
func (a *App) FixedRes() *ecs.Resource[FixedTime] { return a.fixedRes }

// Stats returns the snapshot published at the end of the last frame. Safe
// from any goroutine.
func (a *App) Stats() Stats { return *a.stats.Load() }

// AddSystem registers def under s.
func (a *App) AddSystem(s system.Schedule, def *system.Def) error {
	return a.runner.Add(s, def)
}

// Send queues c for the next frame. It never blocks; false means the queue
// was full and c was dropped. Safe from any goroutine.
func (a *App) Send(c Control) bool {
	if c.Op == OpQuit {
		a.quit.Store(true)
		return true
	}
	select {
	case a.controls <- c:
		return true
	default:
		return false
	}
}

// Quit stops the loop after the in-flight frame. Safe from any goroutine.
func (a *App) Quit() { a.quit.Store(true) }

func (a *App) Pause() {
	if a.state == StateRunning {
		a.setState(StatePaused)
	}
}

func (a *App) Resume() {
	if a.state == StatePaused {
		a.stepPending = false
		a.setState(StateRunning)
	}
}

// Step requests one full frame while paused. Ignored when not paused.
func (a *App) Step() {
	if a.state == StatePaused {
		a.stepPending = true
	}
}

// SetSpeed scales the delta fed to Time and the fixed-step accumulator.
func (a *App) SetSpeed(speed float64) {
	if speed <= 0 || speed == a.speed {
		return
	}
	a.speed = speed
	event.Emit(a.bus, event.SpeedChanged{Speed: speed})
	a.log.Info("speed changed", zap.Float64("speed", speed))
}

func (a *App) setState(to State) {
	from := a.state
	if from == to {
		return
	}
	a.state = to
	event.Emit(a.bus, event.StateChanged{From: from.String(), To: to.String()})
	a.log.Info("app state", zap.String("from", from.String()), zap.String("to", to.String()))
}

// Preload runs loaders concurrently and applies their results in order.
// The first loader error cancels the others.
func (a *App) Preload(ctx context.Context, loaders ...Loader) error {
	g, gctx := errgroup.WithContext(ctx)
	applies := make([]func(*App) error, len(loaders))
	for i, load := range loaders {
		g.Go(func() error {
			apply, err := load(gctx)
			if err != nil {
				return err
			}
			applies[i] = apply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	for _, apply := range applies {
		if apply == nil {
			continue
		}
		if err := apply(a); err != nil {
			return fmt.Errorf("preload apply: %w", err)
		}
	}
	return nil
}

// Start runs Startup and arms the frame clock. Run calls it; hosts that
// drive Frame themselves call it once first.
func (a *App) Start() error {
	if a.started {
		return ErrAlreadyRunning
	}
	a.started = true
	a.setState(StateRunning)
	if err := a.runSchedule(system.Startup); err != nil {
		a.setState(StateStopped)
		return err
	}
	a.last = a.opts.Clock.Now()
	a.publish(0, 0)
	return nil
}

// Run starts the App and produces frames until Quit, ctx cancellation or
// the pump closes. It returns programmer errors and aborts.
func (a *App) Run(ctx context.Context) error {
	if a.opts.Pump == nil {
		return fmt.Errorf("%w: no frame pump", ecs.ErrProgrammer)
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer a.setState(StateStopped)

	for !a.quit.Load() {
		if err := a.opts.Pump.Wait(ctx); err != nil {
			if errors.Is(err, ErrPumpClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("frame pump: %w", err)
		}
		if err := a.Frame(); err != nil {
			return err
		}
	}
	return nil
}

// Frame runs one frame.
func (a *App) Frame() error {
	if !a.started {
		return fmt.Errorf("%w: Frame before Start", ecs.ErrProgrammer)
	}
	a.drainControls()
	if a.quit.Load() || a.state == StateStopped {
		return nil
	}
	begin := a.opts.Clock.Now()

	raw := begin.Sub(a.last)
	a.last = begin
	if raw < 0 {
		raw = 0
	}
	if raw > a.opts.MaxDelta {
		raw = a.opts.MaxDelta
	}

	a.frame++
	a.bus.SwapBuffers()
	a.bus.DispatchAll()

	if a.state == StatePaused && !a.stepPending {
		a.updateTime(0, raw)
		err := a.runSchedule(system.Last)
		a.publish(a.opts.Clock.Now().Sub(begin), 0)
		return err
	}
	stepping := a.state == StatePaused
	a.stepPending = false

	delta := scale(raw, a.speed)
	a.updateTime(delta, raw)

	steps, err := a.runFrame(delta, stepping)
	a.publish(a.opts.Clock.Now().Sub(begin), steps)
	return err
}

// runFrame runs every schedule of an active frame. A handler-requested
// pause skips straight to Last.
func (a *App) runFrame(delta time.Duration, stepping bool) (int, error) {
	halted := func() bool { return !stepping && a.state != StateRunning }

	for _, s := range []system.Schedule{system.First, system.PreUpdate} {
		if halted() {
			break
		}
		if err := a.runSchedule(s); err != nil {
			return 0, err
		}
	}

	steps := 0
	if !halted() {
		a.accumulator += delta
		step := a.opts.FixedTimestep
	fixed:
		for a.accumulator >= step && steps < a.opts.MaxFixedSteps {
			for _, s := range []system.Schedule{system.FixedPreUpdate, system.FixedUpdate, system.FixedPostUpdate} {
				if err := a.runSchedule(s); err != nil {
					return steps, err
				}
				if halted() {
					// a partly run step is still consumed
					a.accumulator -= step
					steps++
					break fixed
				}
			}
			a.accumulator -= step
			steps++
		}
		dropped := 0
		if steps == a.opts.MaxFixedSteps && a.accumulator >= step {
			dropped = int(a.accumulator / step)
			a.accumulator -= time.Duration(dropped) * step
			a.log.Debug("fixed steps dropped", zap.Int("dropped", dropped), zap.Uint64("frame", a.frame))
		}
		ecs.InsertResource(a.res, a.fixedRes, FixedTime{
			Timestep: step,
			Overstep: a.accumulator,
			Steps:    steps,
			Dropped:  dropped,
		})
	}

	for _, s := range []system.Schedule{system.Update, system.PostUpdate} {
		if halted() {
			break
		}
		if err := a.runSchedule(s); err != nil {
			return steps, err
		}
	}
	return steps, a.runSchedule(system.Last)
}

// runSchedule runs every system of s in order. Runtime failures go to the
// error handler; programmer errors and aborts stop the pass and are
// returned.
func (a *App) runSchedule(s system.Schedule) error {
	for _, def := range a.runner.Systems(s) {
		err := a.runner.Run(def)
		if err == nil {
			continue
		}
		a.failures++
		serr := &SystemError{Frame: a.frame, Schedule: s, System: def.Name, Err: err}
		event.Emit(a.bus, event.SystemFailed{Frame: a.frame, Schedule: s.String(), System: def.Name, Err: err})
		if serr.Fatal() {
			a.log.Error("programmer error", zap.String("system", def.Name),
				zap.String("schedule", s.String()), zap.Error(err))
			a.quit.Store(true)
			return serr
		}
		switch a.opts.ErrorHandler(serr) {
		case Continue:
		case Pause:
			a.Pause()
			if s != system.Last && s != system.Startup {
				return nil
			}
		case Abort:
			a.quit.Store(true)
			return fmt.Errorf("%w: %w", ErrAborted, serr)
		}
	}
	return nil
}

func (a *App) drainControls() {
	for {
		select {
		case c := <-a.controls:
			a.apply(c)
		default:
			return
		}
	}
}

func (a *App) apply(c Control) {
	switch c.Op {
	case OpPause:
		a.Pause()
	case OpResume:
		a.Resume()
	case OpToggle:
		if a.state == StatePaused {
			a.Resume()
		} else {
			a.Pause()
		}
	case OpStep:
		a.Step()
	case OpSpeed:
		a.SetSpeed(c.Speed)
	case OpQuit:
		a.Quit()
	default:
		a.log.Warn("unknown control", zap.Uint8("op", uint8(c.Op)))
	}
}

func (a *App) updateTime(delta, raw time.Duration) {
	prev := ecs.MustGetResource(a.res, a.timeRes)
	ecs.InsertResource(a.res, a.timeRes, Time{
		Delta:    delta,
		RawDelta: raw,
		Elapsed:  prev.Elapsed + delta,
		Frame:    a.frame,
		Speed:    a.speed,
	})
}

func (a *App) publish(frameTime time.Duration, steps int) {
	t := ecs.MustGetResource(a.res, a.timeRes)
	a.stats.Store(&Stats{
		Frame:      a.frame,
		State:      a.state.String(),
		Speed:      a.speed,
		Delta:      t.Delta,
		Elapsed:    t.Elapsed,
		FrameTime:  frameTime,
		FixedSteps: steps,
		Entities:   a.world.Len(),
		Systems:    a.runner.Len(),
		Failures:   a.failures,
	})
}
