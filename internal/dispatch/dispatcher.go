// Package dispatch builds canonical outbound payloads and delivers them
// to the configured sinks: a generic webhook and the Last.fm API.
//
// Delivery is best-effort fire-and-forget. Each event is handed to every
// sink on its own short-lived goroutine with a bounded timeout; failures
// are logged with status and body and never propagate back into playback
// state.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink delivers a single outbound event to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to zero or more sinks.
type Dispatcher struct {
	sinks   []Sink
	logger  zerolog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// New creates a Dispatcher over the given sinks.
func New(logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		logger:  logger.With().Str("component", "dispatch").Logger(),
		timeout: 15 * time.Second,
	}
}

// Dispatch delivers the event to every sink asynchronously and returns
// immediately. A slow or failing sink never delays the caller.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := sink.Deliver(ctx, ev); err != nil {
				d.logger.Warn().
					Err(err).
					Str("sink", sink.Name()).
					Str("event", string(ev.Type)).
					Str("track", ev.Track).
					Msg("Delivery failed")
				return
			}
			d.logger.Debug().
				Str("sink", sink.Name()).
				Str("event", string(ev.Type)).
				Str("track", ev.Track).
				Msg("Delivered")
		}(sink)
	}
}

// Wait blocks until all in-flight deliveries have finished. Used during
// shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
