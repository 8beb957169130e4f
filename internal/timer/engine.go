// Package timer implements a wall-clock countdown that survives client
// restarts. Remaining time is always derived from the persisted start and
// the clock, never from counted ticks, so a stalled or backgrounded process
// cannot drift.
package timer

import (
	"context"
	"log"
	"sync"
	"time"

	"docquiz/internal/domain"
)

// State of the engine. Running moves one way into Expired or Stopped.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateExpired State = "expired"
	StateStopped State = "stopped"
)

// RecordStore persists timer starts per identity. Implementations live in
// internal/infra.
type RecordStore interface {
	Load(ctx context.Context, identity string) (domain.TimerRecord, bool, error)
	Save(ctx context.Context, record domain.TimerRecord) error
	Clear(ctx context.Context, identity string) error
}

// Engine counts one session's time limit down.
type Engine struct {
	identity string
	duration time.Duration
	store    RecordStore
	clock    func() time.Time
	tick     time.Duration
	grace    time.Duration

	onExpire   func()
	onFinished func()
	onTick     func(remaining int)

	mu         sync.Mutex
	state      State
	startAt    time.Time
	cancel     context.CancelFunc
	expireOnce sync.Once
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock injects the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithTickInterval overrides the one-second recomputation interval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithGrace sets the delay between expiry and the finished action.
func WithGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// WithOnExpire registers the action fired exactly once when time runs out.
func WithOnExpire(fn func()) Option {
	return func(e *Engine) { e.onExpire = fn }
}

// WithOnFinished registers the action fired after the grace delay, once the
// persisted record has been cleared.
func WithOnFinished(fn func()) Option {
	return func(e *Engine) { e.onFinished = fn }
}

// WithOnTick registers a per-second remaining-time callback for display.
func WithOnTick(fn func(remaining int)) Option {
	return func(e *Engine) { e.onTick = fn }
}

// New builds an engine for one session identity. A zero duration produces a
// disabled engine that never activates and never persists anything.
func New(identity string, durationSeconds int, store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		identity: identity,
		duration: time.Duration(durationSeconds) * time.Second,
		store:    store,
		clock:    time.Now,
		tick:     time.Second,
		grace:    2 * time.Second,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Disabled reports whether the engine will ever run.
func (e *Engine) Disabled() bool { return e.duration <= 0 }

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Remaining returns the whole seconds left, never negative.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Engine) remainingLocked() int {
	elapsed := e.clock().Sub(e.startAt)
	remaining := int(e.duration.Seconds()) - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Start activates the engine. The first activation for an identity persists
// the start; later activations (a restarted client) read it back instead of
// resetting the countdown. If the deadline already passed, the engine goes
// straight to Expired.
func (e *Engine) Start(ctx context.Context) error {
	if e.Disabled() {
		return nil
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil
	}

	record, found, err := e.store.Load(ctx, e.identity)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !found {
		record = domain.TimerRecord{Identity: e.identity, StartEpochMS: e.clock().UnixMilli()}
		if err := e.store.Save(ctx, record); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.startAt = time.UnixMilli(record.StartEpochMS)

	if e.remainingLocked() <= 0 {
		e.mu.Unlock()
		e.expire()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateRunning
	e.mu.Unlock()

	go e.loop(loopCtx)
	return nil
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.state != StateRunning {
				e.mu.Unlock()
				return
			}
			remaining := e.remainingLocked()
			e.mu.Unlock()

			if e.onTick != nil {
				e.onTick(remaining)
			}
			if remaining <= 0 {
				e.expire()
				return
			}
		}
	}
}

// expire is the one-way Running (or fresh-init) -> Expired transition. The
// expiry action fires exactly once, and the finished action follows after
// the grace delay, once the persisted record is gone.
func (e *Engine) expire() {
	e.expireOnce.Do(func() {
		e.mu.Lock()
		e.state = StateExpired
		if e.cancel != nil {
			e.cancel()
		}
		e.mu.Unlock()

		if e.onExpire != nil {
			e.onExpire()
		}

		go func() {
			if e.grace > 0 {
				time.Sleep(e.grace)
			}
			if err := e.store.Clear(context.Background(), e.identity); err != nil {
				log.Printf("timer: clear record for %s: %v", e.identity, err)
			}
			if e.onFinished != nil {
				e.onFinished()
			}
		}()
	})
}

// Stop ends the countdown early because the session reached a terminal state
// first. It clears the persisted record so the next session starts fresh.
func (e *Engine) Stop(ctx context.Context) error {
	if e.Disabled() {
		return nil
	}

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopped
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	return e.store.Clear(ctx, e.identity)
}
