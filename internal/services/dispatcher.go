package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// EventHandler runs one voice event to completion.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.VoiceEvent) Result
}

// Dispatcher runs events in the background, at most limit at a time, on a
// context that is independent of the inbound HTTP request.
type Dispatcher struct {
	base    context.Context
	handler EventHandler
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher whose runs inherit values (not
// cancellation) from base. limit < 1 is treated as 1.
func NewDispatcher(base context.Context, h EventHandler, limit int) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	return &Dispatcher{
		base:    context.WithoutCancel(base),
		handler: h,
		sem:     semaphore.NewWeighted(int64(limit)),
	}
}

// Submit schedules ev and returns immediately.
func (d *Dispatcher) Submit(ev domain.VoiceEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(d.base, 1); err != nil {
			log.Error().Err(err).Str("platform", string(ev.Platform)).Msg("dispatcher dropped event")
			return
		}
		defer d.sem.Release(1)

		pipelineInflight.Inc()
		defer pipelineInflight.Dec()
		d.handler.Handle(d.base, ev)
	}()
}

// Wait blocks until every submitted run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
