package app

import (
	"fmt"
	"strconv"
	"strings"
)

type ControlOp uint8

const (
	OpPause ControlOp = iota + 1
	OpResume
	OpStep
	OpSpeed
	OpQuit
	OpToggle
)

// Control is a request from another goroutine, applied at the start of the
// next frame on the loop goroutine.
type Control struct {
	Op    ControlOp
	Speed float64
}

func (c Control) String() string {
	switch c.Op {
	case OpPause:
		return "pause"
	case OpResume:
		return "resume"
	case OpStep:
		return "step"
	case OpSpeed:
		return "speed:" + strconv.FormatFloat(c.Speed, 'g', -1, 64)
	case OpQuit:
		return "quit"
	case OpToggle:
		return "toggle"
	default:
		return fmt.Sprintf("op(%d)", c.Op)
	}
}

// ParseControl reads the text form used by the inspector and terminal:
// pause, resume, toggle, step, quit, speed:<factor>.
func ParseControl(s string) (Control, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "pause":
		return Control{Op: OpPause}, nil
	case "resume":
		return Control{Op: OpResume}, nil
	case "toggle":
		return Control{Op: OpToggle}, nil
	case "step":
		return Control{Op: OpStep}, nil
	case "quit":
		return Control{Op: OpQuit}, nil
	}
	if rest, ok := strings.CutPrefix(s, "speed:"); ok {
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return Control{}, fmt.Errorf("parse speed %q: %w", rest, err)
		}
		return Control{Op: OpSpeed, Speed: v}, nil
	}
	return Control{}, fmt.Errorf("unknown control %q", s)
}
