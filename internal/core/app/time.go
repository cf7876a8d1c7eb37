package app

import "time"

// Time is the per-frame clock resource.
type Time struct {
	Delta    time.Duration // scaled, clamped frame delta; zero while paused
	RawDelta time.Duration // clamped, unscaled
	Elapsed  time.Duration // sum of Delta since Startup
	Frame    uint64
	Speed    float64
}

// DeltaSeconds returns Delta as float seconds.
func (t Time) DeltaSeconds() float64 { return t.Delta.Seconds() }

// FixedTime describes the fixed-step group of the current frame.
type FixedTime struct {
	Timestep time.Duration
	Overstep time.Duration // accumulator remainder after this frame's steps
	Steps    int           // fixed passes run this frame
	Dropped  int           // whole steps discarded by the per-frame cap
}

func scale(d time.Duration, speed float64) time.Duration {
	if speed == 1 {
		return d
	}
	return time.Duration(float64(d) * speed)
}
