package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeTicker is driven manually by the test.
type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeClock hands out manually-fired tickers.
type fakeClock struct {
	now     time.Time
	mu      sync.Mutex
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// tick fires the most recently created live ticker once. The countdown
// registers its ticker from a goroutine spawned by Start, so tick waits
// for one to appear rather than assuming Start already produced it.
func (c *fakeClock) tick() {
	c.now = c.now.Add(time.Second)
	for {
		c.mu.Lock()
		tickers := append([]*fakeTicker(nil), c.tickers...)
		c.mu.Unlock()
		for i := len(tickers) - 1; i >= 0; i-- {
			if t := tickers[i]; !t.isStopped() {
				t.ch <- c.now
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
}

func waitEvent(t *testing.T, ch <-chan CountdownEvent) CountdownEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown event")
		return CountdownEvent{}
	}
}

func TestCountdown_TicksDownAndElapses(t *testing.T) {
	clock := newFakeClock()
	c := NewCountdown(clock, zerolog.Nop())
	key := createKey("core_company")

	if err := c.Start(key); err != nil {
		t.Fatalf("failed to start countdown: %v", err)
	}

	state := c.State()
	if !state.Active || state.SecondsRemaining != CountdownSeconds {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	clock.tick()
	ev := waitEvent(t, c.Events())
	if ev.Type != CountdownTick || ev.SecondsRemaining != 2 {
		t.Fatalf("expected tick at 2, got %+v", ev)
	}

	clock.tick()
	ev = waitEvent(t, c.Events())
	if ev.Type != CountdownTick || ev.SecondsRemaining != 1 {
		t.Fatalf("expected tick at 1, got %+v", ev)
	}

	clock.tick()
	ev = waitEvent(t, c.Events())
	if ev.Type != CountdownElapsed {
		t.Fatalf("expected elapsed, got %+v", ev)
	}
	if ev.Key != key {
		t.Errorf("elapsed event carries wrong key: %+v", ev.Key)
	}

	if state := c.State(); state.Active {
		t.Errorf("countdown still active after elapsing: %+v", state)
	}
}

func TestCountdown_StartWhileActiveFails(t *testing.T) {
	clock := newFakeClock()
	c := NewCountdown(clock, zerolog.Nop())

	if err := c.Start(createKey("core_company")); err != nil {
		t.Fatalf("failed to start countdown: %v", err)
	}
	if err := c.Start(createKey("ast_contract")); err != ErrCountdownActive {
		t.Fatalf("expected ErrCountdownActive, got %v", err)
	}
}

func TestCountdown_CancelStopsEvents(t *testing.T) {
	clock := newFakeClock()
	c := NewCountdown(clock, zerolog.Nop())
	key := createKey("core_company")

	if err := c.Start(key); err != nil {
		t.Fatalf("failed to start countdown: %v", err)
	}

	c.Cancel()

	ev := waitEvent(t, c.Events())
	if ev.Type != CountdownCancelled || ev.Key != key {
		t.Fatalf("expected cancelled event for key, got %+v", ev)
	}
	if state := c.State(); state.Active {
		t.Errorf("countdown still active after cancel: %+v", state)
	}

	// No further events may fire for the cancelled run.
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdown_CancelIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	c := NewCountdown(clock, zerolog.Nop())

	c.Cancel()
	c.Cancel()

	if err := c.Start(createKey("core_company")); err != nil {
		t.Fatalf("failed to start after idle cancels: %v", err)
	}
	c.Cancel()
	c.Cancel()

	if state := c.State(); state.Active {
		t.Errorf("countdown active after cancels: %+v", state)
	}
}

func TestCountdown_RestartAfterCancel(t *testing.T) {
	clock := newFakeClock()
	c := NewCountdown(clock, zerolog.Nop())

	if err := c.Start(createKey("core_company")); err != nil {
		t.Fatalf("failed to start countdown: %v", err)
	}
	c.Cancel()
	if ev := waitEvent(t, c.Events()); ev.Type != CountdownCancelled {
		t.Fatalf("expected cancelled, got %+v", ev)
	}

	key := createKey("ast_contract")
	if err := c.Start(key); err != nil {
		t.Fatalf("failed to restart countdown: %v", err)
	}

	clock.tick()
	ev := waitEvent(t, c.Events())
	if ev.Type != CountdownTick || ev.Key != key || ev.SecondsRemaining != 2 {
		t.Fatalf("expected fresh tick for new key, got %+v", ev)
	}
}
