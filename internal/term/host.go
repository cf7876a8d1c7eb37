// Package term hosts an App in a terminal: a Last-phase system draws a HUD
// and the named entities, and key presses become App controls.
package term

import (
	"context"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"golang.org/x/text/width"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

const (
	minSpeed = 0.125
	maxSpeed = 8
)

var (
	hudStyle    = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorTeal)
	nameStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	posStyle    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	pausedStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
)

type Host struct {
	screen  tcell.Screen
	app     *app.App
	defs    *component.Defs
	maxRows int
	log     *zap.Logger

	rows *ecs.Query
}

func New(screen tcell.Screen, a *app.App, defs *component.Defs, maxRows int, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 20
	}
	return &Host{
		screen:  screen,
		app:     a,
		defs:    defs,
		maxRows: maxRows,
		log:     log,
		rows:    ecs.NewQuery(defs.Name, defs.WorldTransform),
	}
}

// Install registers the render system in Last.
func (h *Host) Install() error {
	def := system.Define("term.render",
		[]system.Param{system.Res(h.app.TimeRes()), system.QueryOf(h.rows)},
		h.render)
	return h.app.AddSystem(system.Last, def)
}

func (h *Host) render(in *system.In) error {
	t := system.ResOf(in, h.app.TimeRes())
	h.screen.Clear()
	cols, lines := h.screen.Size()

	state := h.app.State()
	style := hudStyle
	if state == app.StatePaused {
		style = pausedStyle
	}
	hud := fmt.Sprintf(" esrt  frame %d  %s  x%g  dt %s  entities %d ",
		t.Frame, state, t.Speed, t.Delta.Round(100_000), h.app.World().Len())
	for x := range cols {
		h.screen.SetContent(x, 0, ' ', nil, style)
	}
	drawText(h.screen, 0, 0, cols, hud, style)

	y := 2
	for _, row := range in.Query(h.rows).All() {
		if y-2 >= h.maxRows || y >= lines-1 {
			break
		}
		name := ecs.Read(row, h.defs.Name).Value
		pos := ecs.Read(row, h.defs.WorldTransform).Position
		n := drawText(h.screen, 1, y, 24, name, nameStyle)
		drawText(h.screen, 1+n+1, y, cols, fmt.Sprintf("(%.2f, %.2f)", pos.X, pos.Y), posStyle)
		y++
	}
	drawText(h.screen, 0, lines-1, cols, " space pause  s step  +/- speed  q quit", posStyle)
	h.screen.Show()
	return nil
}

// HandleEvent maps one terminal event to an App control. It reports false
// once quit was requested.
func (h *Host) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		h.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			h.app.Send(app.Control{Op: app.OpQuit})
			return false
		case tcell.KeyRune:
			return h.handleRune(ev.Rune())
		}
	}
	return true
}

func (h *Host) handleRune(r rune) bool {
	switch r {
	case ' ', 'p':
		h.app.Send(app.Control{Op: app.OpToggle})
	case 's':
		h.app.Send(app.Control{Op: app.OpStep})
	case '+', '=':
		h.app.Send(app.Control{Op: app.OpSpeed, Speed: math.Min(h.app.Stats().Speed*2, maxSpeed)})
	case '-':
		h.app.Send(app.Control{Op: app.OpSpeed, Speed: math.Max(h.app.Stats().Speed/2, minSpeed)})
	case 'q':
		h.app.Send(app.Control{Op: app.OpQuit})
		return false
	}
	return true
}

// Listen polls terminal events until quit, ctx cancellation or the screen
// is finalized. Runs on its own goroutine.
func (h *Host) Listen(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		_ = h.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()
	for {
		ev := h.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		if !h.HandleEvent(ev) {
			h.log.Info("quit requested from terminal")
			return
		}
	}
}

// drawText writes s from (x, y) without passing column limit and returns
// the columns used. East Asian wide runes take two cells.
func drawText(s tcell.Screen, x, y, limit int, text string, style tcell.Style) int {
	used := 0
	for _, r := range text {
		w := runeWidth(r)
		if x+used+w > limit {
			break
		}
		s.SetContent(x+used, y, r, nil, style)
		used += w
	}
	return used
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// DisplayWidth is the number of terminal columns text occupies.
func DisplayWidth(text string) int {
	n := 0
	for _, r := range text {
		n += runeWidth(r)
	}
	return n
}
