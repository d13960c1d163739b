package workflow

import "time"

// Ticker delivers ticks on a channel and can be stopped.
type Ticker interface {
	// C returns the tick delivery channel.
	C() <-chan time.Time

	// Stop shuts down the ticker.
	Stop()
}

// Clock abstracts wall-clock time so the countdown can be driven by a
// virtual clock in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// wallClock is the real-time Clock implementation.
type wallClock struct{}

// NewWallClock returns a Clock backed by the system clock.
func NewWallClock() Clock {
	return wallClock{}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) NewTicker(d time.Duration) Ticker {
	return &wallTicker{ticker: time.NewTicker(d)}
}

type wallTicker struct {
	ticker *time.Ticker
}

func (t *wallTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *wallTicker) Stop() {
	t.ticker.Stop()
}
