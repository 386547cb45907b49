package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock is read access to simulation time, so the tracker can depend on an
// abstraction rather than a concrete controller.
type Clock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one Tick per wall-clock Tick.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners allow.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "realtime" and "accelerated" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "realtime", "real-time":
		return RealTime, nil
	case "accelerated", "":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("unknown clock mode %q", s)
	}
}

// Listener is invoked after every tick with the step number (starting at 1)
// and the new simulation time.
type Listener func(step int, t time.Time) error

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	step        int

	listeners []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves simulation time without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Step returns the number of ticks taken so far.
func (tc *TimeController) Step() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.step
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Advance takes a single tick and runs the listeners. The first listener
// error stops the notification and is returned.
func (tc *TimeController) Advance() error {
	tc.mu.Lock()
	tc.step++
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	step, now := tc.step, tc.currentTime
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(step, now); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
	}
	return nil
}

// Run advances the controller steps times, or until ctx is cancelled or a
// listener fails. steps <= 0 runs until cancellation.
func (tc *TimeController) Run(ctx context.Context, steps int) error {
	if tc.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", tc.Tick)
	}

	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; steps <= 0 || i < steps; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := tc.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives Run's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, steps int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, steps)
	}()
	return done
}
