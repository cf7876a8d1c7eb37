package app

import (
	"context"
	"errors"
	"time"
)

// ErrPumpClosed ends Run without an error.
var ErrPumpClosed = errors.New("frame pump closed")

// Pump decides when the next frame starts. Wait blocks until then; it is
// the only place the loop goroutine suspends.
type Pump interface {
	Wait(ctx context.Context) error
}

// TickerPump paces frames at a fixed rate.
type TickerPump struct {
	ticker *time.Ticker
}

func NewTickerPump(rate int) *TickerPump {
	if rate <= 0 {
		rate = 60
	}
	return &TickerPump{ticker: time.NewTicker(time.Second / time.Duration(rate))}
}

func (p *TickerPump) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *TickerPump) Stop() { p.ticker.Stop() }

// ManualPump is driven by a host or a test: each Wait advances the mock
// clock by Step and the pump closes after Frames waits. Frames <= 0 means
// unlimited.
type ManualPump struct {
	Clock  *MockClock
	Step   time.Duration
	Frames int

	served int
}

func NewManualPump(clock *MockClock, step time.Duration, frames int) *ManualPump {
	return &ManualPump{Clock: clock, Step: step, Frames: frames}
}

func (p *ManualPump) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Frames > 0 && p.served >= p.Frames {
		return ErrPumpClosed
	}
	p.served++
	if p.Clock != nil {
		p.Clock.Advance(p.Step)
	}
	return nil
}

// Served reports how many frames the pump has released.
func (p *ManualPump) Served() int { return p.served }
