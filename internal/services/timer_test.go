package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdownTimer_ExpiresExactlyOnce(t *testing.T) {
	var expired int32
	timer := NewCountdownTimerWithInterval(time.Millisecond, nil, func() {
		atomic.AddInt32(&expired, 1)
	})

	timer.Start(3)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
	assert.False(t, timer.Running())
}

func TestCountdownTimer_CancelBeforeExpiry(t *testing.T) {
	var expired int32
	timer := NewCountdownTimerWithInterval(10*time.Millisecond, nil, func() {
		atomic.AddInt32(&expired, 1)
	})

	timer.Start(100)
	timer.Cancel()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&expired))
	assert.False(t, timer.Running())
	assert.Equal(t, 0, timer.Remaining())
}

func TestCountdownTimer_CancelIdleIsSafe(t *testing.T) {
	timer := NewCountdownTimer(nil, nil)
	timer.Cancel()
	timer.Cancel()
	assert.False(t, timer.Running())
}

func TestCountdownTimer_RestartCancelsPrevious(t *testing.T) {
	var expired int32
	timer := NewCountdownTimerWithInterval(time.Millisecond, nil, func() {
		atomic.AddInt32(&expired, 1)
	})

	// Restarting repeatedly must never stack tickers: only the final
	// countdown's expiry fires.
	timer.Start(100)
	timer.Start(100)
	timer.Start(2)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
}

func TestCountdownTimer_TicksCountDown(t *testing.T) {
	var mu sync.Mutex
	var ticks []int
	done := make(chan struct{})

	timer := NewCountdownTimerWithInterval(time.Millisecond, func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, func() {
		close(done)
	})

	timer.Start(3)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never expired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
}
