package workflow

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CountdownSeconds is the fixed number of seconds a validated-level
// operation waits before its elapsed cue fires.
const CountdownSeconds = 3

// ErrCountdownActive is returned when a countdown is started while another
// one is still pending. Only one countdown may be active at a time.
var ErrCountdownActive = errors.New("a countdown is already active")

// CountdownEventType classifies countdown events.
type CountdownEventType string

const (
	// CountdownTick fires once per second while the countdown runs.
	CountdownTick CountdownEventType = "tick"

	// CountdownElapsed fires when the countdown reaches zero. It is the
	// subscriber's cue to execute the pending operation immediately.
	CountdownElapsed CountdownEventType = "elapsed"

	// CountdownCancelled fires when the countdown is cancelled.
	CountdownCancelled CountdownEventType = "cancelled"
)

// CountdownEvent is one tick, elapse, or cancellation notification.
type CountdownEvent struct {
	// Type is the event classification.
	Type CountdownEventType `json:"type"`

	// Key is the policy key the countdown is pending for.
	Key PolicyKey `json:"key"`

	// SecondsRemaining is the remaining time after this event.
	SecondsRemaining int `json:"seconds_remaining"`
}

// CountdownState is a snapshot of the countdown sub-machine.
type CountdownState struct {
	// Active indicates a countdown is pending.
	Active bool `json:"active"`

	// SecondsRemaining is the time left before the elapsed cue.
	SecondsRemaining int `json:"seconds_remaining"`

	// PendingKey is the policy key awaiting execution or cancellation.
	PendingKey PolicyKey `json:"pending_key"`
}

// Countdown is the single-flight countdown sub-machine for validated-level
// operations. The engine owns the timer: callers subscribe to Events and
// act on the elapsed cue instead of running their own ticker. Cancellation
// is immediate, idempotent, and guarantees no further events fire for the
// cancelled run.
type Countdown struct {
	mu     sync.Mutex
	clock  Clock
	state  CountdownState
	stop   chan struct{}
	events chan CountdownEvent
	logger zerolog.Logger
}

// NewCountdown creates a countdown driven by the given clock.
func NewCountdown(clock Clock, logger zerolog.Logger) *Countdown {
	return &Countdown{
		clock:  clock,
		events: make(chan CountdownEvent, 16),
		logger: logger.With().Str("component", "countdown").Logger(),
	}
}

// Events returns the subscription channel for tick, elapsed, and cancelled
// notifications. Events are dropped rather than blocking the timer if the
// subscriber falls behind.
func (c *Countdown) Events() <-chan CountdownEvent {
	return c.events
}

// State returns a snapshot of the current countdown state.
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a countdown for the given policy key. Returns
// ErrCountdownActive if another countdown is pending.
func (c *Countdown) Start(key PolicyKey) error {
	c.mu.Lock()
	if c.state.Active {
		c.mu.Unlock()
		return ErrCountdownActive
	}

	c.state = CountdownState{
		Active:           true,
		SecondsRemaining: CountdownSeconds,
		PendingKey:       key,
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.logger.Debug().Str("policy", key.String()).Msg("Countdown started")
	go c.run(key, stop)
	return nil
}

// Cancel stops a pending countdown. It is idempotent and safe to call when
// no countdown is active.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	if !c.state.Active {
		c.mu.Unlock()
		return
	}

	key := c.state.PendingKey
	close(c.stop)
	c.stop = nil
	c.state = CountdownState{}
	c.mu.Unlock()

	c.emit(CountdownEvent{Type: CountdownCancelled, Key: key})
	c.logger.Debug().Str("policy", key.String()).Msg("Countdown cancelled")
}

// run decrements the countdown once per second until it elapses or is
// cancelled.
func (c *Countdown) run(key PolicyKey, stop chan struct{}) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.mu.Lock()
			// The countdown may have been cancelled, or replaced by a newer
			// one, between the tick firing and the lock being acquired.
			if !c.state.Active || c.stop != stop {
				c.mu.Unlock()
				return
			}
			c.state.SecondsRemaining--
			remaining := c.state.SecondsRemaining
			if remaining <= 0 {
				c.state = CountdownState{}
				c.stop = nil
				c.mu.Unlock()
				c.emit(CountdownEvent{Type: CountdownElapsed, Key: key})
				c.logger.Debug().Str("policy", key.String()).Msg("Countdown elapsed")
				return
			}
			c.mu.Unlock()
			c.emit(CountdownEvent{Type: CountdownTick, Key: key, SecondsRemaining: remaining})
		}
	}
}

// emit delivers an event without ever blocking the timer goroutine.
func (c *Countdown) emit(event CountdownEvent) {
	select {
	case c.events <- event:
	default:
	}
}
