package services

import (
	"sync"
	"time"
)

type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerExpired
)

// CountdownTimer drives one logical countdown scope (a question or an exam
// section) at 1-second resolution. Start always cancels a previously running
// countdown for the same timer before beginning a new one, so two tickers for
// the same scope can never overlap. Expiry fires exactly once per Start.
//
// The remaining-time value is advisory; server-recorded timestamps stay
// authoritative for scoring eligibility when the host environment throttles
// timers.
type CountdownTimer struct {
	mu        sync.Mutex
	state     timerState
	remaining int
	stop      chan struct{}
	interval  time.Duration

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdownTimer creates an idle timer. Either callback may be nil.
func NewCountdownTimer(onTick func(remaining int), onExpire func()) *CountdownTimer {
	return &CountdownTimer{
		interval: time.Second,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// NewCountdownTimerWithInterval is test-only for fast ticks.
func NewCountdownTimerWithInterval(interval time.Duration, onTick func(remaining int), onExpire func()) *CountdownTimer {
	t := NewCountdownTimer(onTick, onExpire)
	t.interval = interval
	return t
}

// Start resets the countdown to durationSeconds and begins ticking. A running
// countdown is cancelled first; its expiry will not fire.
func (t *CountdownTimer) Start(durationSeconds int) {
	t.Cancel()

	t.mu.Lock()
	t.state = timerRunning
	t.remaining = durationSeconds
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(stop)
}

func (t *CountdownTimer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			expired, fire := t.tick(stop)
			if fire != nil {
				fire()
			}
			if expired {
				return
			}
		}
	}
}

// tick decrements under the lock and decides, still under the lock, whether
// this goroutine owns the expiry. Returning the callback keeps user code
// outside the lock.
func (t *CountdownTimer) tick(stop chan struct{}) (bool, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A Cancel or Start raced with the ticker; this run loop is orphaned.
	if t.stop != stop || t.state != timerRunning {
		return true, nil
	}

	if t.remaining > 0 {
		t.remaining--
	}
	remaining := t.remaining

	if remaining <= 0 {
		t.state = timerExpired
		t.stop = nil
		expire := t.onExpire
		tick := t.onTick
		return true, func() {
			if tick != nil {
				tick(0)
			}
			if expire != nil {
				expire()
			}
		}
	}

	tick := t.onTick
	return false, func() {
		if tick != nil {
			tick(remaining)
		}
	}
}

// Cancel stops ticking without firing expiry. Safe to call in any state.
func (t *CountdownTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.state = timerIdle
	t.remaining = 0
}

// Remaining returns the advisory seconds left; never negative.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether a countdown is in flight.
func (t *CountdownTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerRunning
}
