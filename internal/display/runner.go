/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package display runs the schedule poll and the countdown tick for one
// display process and publishes what presenters should show.
package display

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/clock"
	"github.com/friendsincode/expo_display/internal/countdown"
	"github.com/friendsincode/expo_display/internal/events"
	"github.com/friendsincode/expo_display/internal/schedule"
)

// Defaults for the two periodic triggers.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultTickInterval = time.Second
)

// ErrAlreadyRunning is returned by Start on a running Runner.
var ErrAlreadyRunning = errors.New("display runner already running")

// Options configures a Runner.
type Options struct {
	PollInterval time.Duration
	TickInterval time.Duration
}

// Runner owns the poll and tick triggers. All engine mutation happens on
// its loop goroutine; State and Snapshot are safe from any goroutine.
type Runner struct {
	syncer *schedule.Synchronizer
	engine *countdown.Engine
	clock  clock.Clock
	bus    events.Publisher
	opts   Options
	logger zerolog.Logger

	state   atomic.Pointer[countdown.State]
	refresh chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewRunner wires a synchronizer and engine together. The engine becomes the
// synchronizer's suppression guard input.
func NewRunner(syncer *schedule.Synchronizer, engine *countdown.Engine, clk clock.Clock, bus events.Publisher, opts Options, logger zerolog.Logger) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	syncer.SetActivityReporter(engine)

	r := &Runner{
		syncer:  syncer,
		engine:  engine,
		clock:   clk,
		bus:     bus,
		opts:    opts,
		logger:  logger.With().Str("component", "display").Logger(),
		refresh: make(chan struct{}, 1),
	}
	initial := engine.State()
	r.state.Store(&initial)
	return r
}

// Start polls and ticks immediately, then keeps both triggers running until
// Stop is called or ctx is done. Once the loop has exited for either reason
// the Runner can be started again.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	pollTicker := r.clock.NewTicker(r.opts.PollInterval)
	tickTicker := r.clock.NewTicker(r.opts.TickInterval)

	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(loopCtx, cancel, pollTicker, tickTicker)

	r.logger.Info().
		Dur("poll_interval", r.opts.PollInterval).
		Dur("tick_interval", r.opts.TickInterval).
		Dur("presentation_duration", r.engine.Duration()).
		Msg("display runner started")
	return nil
}

// Stop cancels both triggers and waits for the loop and any in-flight poll.
// No state changes after Stop returns.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// State returns the state computed at the last tick.
func (r *Runner) State() countdown.State {
	return *r.state.Load()
}

// Snapshot returns the committed schedule and whether one exists.
func (r *Runner) Snapshot() (schedule.Snapshot, bool) {
	return r.syncer.Snapshot()
}

// RequestPoll asks for a poll ahead of the next interval. It reports false
// when a request is already pending.
func (r *Runner) RequestPoll() bool {
	select {
	case r.refresh <- struct{}{}:
		r.bus.Publish(events.EventRefreshRequested, events.Payload{"at": r.clock.Now()})
		return true
	default:
		return false
	}
}

func (r *Runner) loop(ctx context.Context, cancel context.CancelFunc, pollTicker, tickTicker clockwork.Ticker) {
	defer r.wg.Done()

	// Buffered so a poll finishing after the loop exits never blocks.
	pollDone := make(chan schedule.PollResult, 1)
	inFlight := false
	var polls sync.WaitGroup

	defer func() {
		cancel()
		clock.StopTicker(pollTicker)
		clock.StopTicker(tickTicker)
		polls.Wait()

		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
		r.logger.Info().Err(context.Cause(ctx)).Msg("display runner stopped")
	}()

	startPoll := func(trigger string) {
		if inFlight {
			r.logger.Debug().Str("trigger", trigger).Msg("poll still in flight, skipping")
			return
		}
		inFlight = true
		polls.Add(1)
		go func() {
			defer polls.Done()
			pollDone <- r.syncer.Poll(ctx)
		}()
	}

	startPoll("start")
	r.tick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.Chan():
			startPoll("interval")
		case <-r.refresh:
			startPoll("refresh")
		case res := <-pollDone:
			inFlight = false
			r.publishPoll(res)
		case <-tickTicker.Chan():
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	now := r.clock.Now()
	snap, synced := r.syncer.Snapshot()

	prev := r.State()
	prevWindow, hadWindow := r.engine.Window()

	st := r.engine.Tick(now, snap, synced)
	r.state.Store(&st)

	window, hasWindow := r.engine.Window()
	if hadWindow && (!hasWindow || !window.Start.Equal(prevWindow.Start)) {
		r.bus.Publish(events.EventPresentationEnd, events.Payload{
			"target": prevWindow.Start,
			"at":     now,
		})
	}
	if hasWindow && (!hadWindow || !window.Start.Equal(prevWindow.Start)) {
		r.bus.Publish(events.EventPresentationStart, events.Payload{
			"target":  window.Start,
			"ends_at": window.End,
			"at":      now,
		})
	}
	if st.Phase != prev.Phase {
		r.bus.Publish(events.EventPhaseChanged, events.Payload{
			"from":  string(prev.Phase),
			"to":    string(st.Phase),
			"state": st,
		})
	}
	r.bus.Publish(events.EventCountdownTick, events.Payload{"state": st})
}

func (r *Runner) publishPoll(res schedule.PollResult) {
	switch res.Outcome {
	case schedule.OutcomeCommitted:
		if !res.Changed {
			return
		}
		r.bus.Publish(events.EventScheduleUpdated, events.Payload{
			"entries":     res.Snapshot.Entries(),
			"count":       res.Snapshot.Len(),
			"produced_at": res.Snapshot.ProducedAt(),
		})
	case schedule.OutcomeFailed:
		payload := events.Payload{"reason": res.Reason, "synced": res.Synced}
		if res.Err != nil {
			payload["error"] = res.Err.Error()
		}
		r.bus.Publish(events.EventPollFailed, payload)
	case schedule.OutcomeSuppressed:
		r.bus.Publish(events.EventPollSuppressed, events.Payload{"at": res.StartedAt})
	}
}
