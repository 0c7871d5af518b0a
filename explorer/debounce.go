package explorer

import (
	"context"
	"time"
)

// debouncer coalesces bursts of triggers into one call of action, made once no trigger has arrived
// for the configured delay. Calls of action never overlap.
type debouncer struct {
	delay    time.Duration
	action   func(ctx context.Context)
	triggers chan struct{}
	flushes  chan flushRequest
	done     chan struct{}
}

type flushRequest struct {
	ctx   context.Context
	reply chan struct{}
}

func newDebouncer(delay time.Duration, action func(ctx context.Context)) *debouncer {
	return &debouncer{
		delay:    delay,
		action:   action,
		triggers: make(chan struct{}, 1),
		flushes:  make(chan flushRequest),
		done:     make(chan struct{}),
	}
}

func (debouncer *debouncer) run(ctx context.Context) {
	defer close(debouncer.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	stop := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-debouncer.triggers:
			if timer == nil {
				timer = time.NewTimer(debouncer.delay)
				timerC = timer.C
			} else {
				timer.Reset(debouncer.delay)
			}
		case <-timerC:
			stop()
			debouncer.action(ctx)
		case request := <-debouncer.flushes:
			stop()
			debouncer.action(request.ctx)
			close(request.reply)
		}
	}
}

// trigger (re)starts the delay.
func (debouncer *debouncer) trigger() {
	select {
	case debouncer.triggers <- struct{}{}:
	default:
		// A trigger is already queued.
	}
}

// flush cancels any pending delay and runs action now, returning when it has completed.
func (debouncer *debouncer) flush(ctx context.Context) error {
	request := flushRequest{ctx: ctx, reply: make(chan struct{})}

	select {
	case debouncer.flushes <- request:
	case <-debouncer.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-request.reply:
		return nil
	case <-debouncer.done:
		return context.Canceled
	}
}
