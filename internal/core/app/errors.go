package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

var (
	ErrAlreadyRunning = fmt.Errorf("%w: app already started", ecs.ErrProgrammer)
	ErrAborted        = errors.New("app aborted by error handler")
)

// SystemError is one failed system run.
type SystemError struct {
	Frame    uint64
	Schedule system.Schedule
	System   string
	Err      error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system %s in %s (frame %d): %v", e.System, e.Schedule, e.Frame, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// Fatal reports whether the failure is a programmer error.
func (e *SystemError) Fatal() bool { return errors.Is(e.Err, ecs.ErrProgrammer) }

// Action is an ErrorHandler's verdict.
type Action int

const (
	Continue Action = iota // keep running the rest of the pass
	Pause                  // stop the pass and pause the App
	Abort                  // stop the App, Run returns the error
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Pause:
		return "pause"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ErrorHandler decides what happens after a runtime system failure.
type ErrorHandler func(err *SystemError) Action

// DefaultErrorHandler logs and continues, or aborts in dev mode so
// failures surface during development and tests.
func DefaultErrorHandler(log *zap.Logger, dev bool) ErrorHandler {
	return func(err *SystemError) Action {
		fields := []zap.Field{
			zap.String("system", err.System),
			zap.String("schedule", err.Schedule.String()),
			zap.Uint64("frame", err.Frame),
			zap.Error(err.Err),
		}
		var pe *system.PanicError
		if errors.As(err.Err, &pe) {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}
		log.Error("system failed", fields...)
		if dev {
			return Abort
		}
		return Continue
	}
}
