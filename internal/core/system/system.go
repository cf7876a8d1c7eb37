package system

import (
	"strings"

	"github.com/google/uuid"
)

// Schedule is one stage of a frame. Stages run in declaration order.
type Schedule int

const (
	Startup         Schedule = iota // once, before the first frame
	First                           // frame start
	PreUpdate                       // input, event swap
	FixedPreUpdate                  // fixed step, 0..n times per frame
	FixedUpdate                     // physics, integration
	FixedPostUpdate                 // fixed step cleanup
	Update                          // game logic
	PostUpdate                      // transform propagation
	Last                            // render, stats; also runs while paused
	ScheduleCount
)

var scheduleNames = [ScheduleCount]string{
	Startup:         "Startup",
	First:           "First",
	PreUpdate:       "PreUpdate",
	FixedPreUpdate:  "FixedPreUpdate",
	FixedUpdate:     "FixedUpdate",
	FixedPostUpdate: "FixedPostUpdate",
	Update:          "Update",
	PostUpdate:      "PostUpdate",
	Last:            "Last",
}

func (s Schedule) String() string {
	if s < 0 || s >= ScheduleCount {
		return "Unknown"
	}
	return scheduleNames[s]
}

func (s Schedule) Valid() bool { return s >= 0 && s < ScheduleCount }

// Fixed reports whether s belongs to the fixed-step group.
func (s Schedule) Fixed() bool {
	return s == FixedPreUpdate || s == FixedUpdate || s == FixedPostUpdate
}

// ParseSchedule resolves a schedule name case-insensitively.
func ParseSchedule(name string) (Schedule, bool) {
	for s, n := range scheduleNames {
		if strings.EqualFold(n, name) {
			return Schedule(s), true
		}
	}
	return 0, false
}

// Fn is a system body. Returning an error reports a runtime failure for
// this run only; the App decides what happens next.
type Fn func(in *In) error

// Def is a system definition. Each Define call stamps a fresh identity, so
// two systems may share a name and still be told apart.
type Def struct {
	ID     uuid.UUID
	Name   string
	Params []Param
	Fn     Fn
	Before []string
	After  []string
}

type Option func(*Def)

// RunBefore orders the system ahead of the named systems in the same schedule.
func RunBefore(names ...string) Option {
	return func(d *Def) { d.Before = append(d.Before, names...) }
}

// RunAfter orders the system behind the named systems in the same schedule.
func RunAfter(names ...string) Option {
	return func(d *Def) { d.After = append(d.After, names...) }
}

func Define(name string, params []Param, fn Fn, opts ...Option) *Def {
	d := &Def{
		ID:     uuid.New(),
		Name:   name,
		Params: params,
		Fn:     fn,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Def) String() string {
	return d.Name + "#" + d.ID.String()[:8]
}
