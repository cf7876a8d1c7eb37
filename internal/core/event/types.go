package event

// SystemFailed is emitted when a system run returns an error or panics.
type SystemFailed struct {
	Frame    uint64
	Schedule string
	System   string
	Err      error
}

// StateChanged is emitted on every App state transition.
type StateChanged struct {
	From string
	To   string
}

// SpeedChanged is emitted when the time scale changes.
type SpeedChanged struct {
	Speed float64
}
