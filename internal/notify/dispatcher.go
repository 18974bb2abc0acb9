package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/proxlab/pvebridge/internal/event"
)

// Dispatcher fans one event out to every registered channel concurrently.
// Each channel runs as its own goroutine; a failing or panicking channel
// never blocks or fails the others. Dispatch calls are independent of each
// other and may overlap freely.
type Dispatcher struct {
	registrations []Registration
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher over a fixed registration set.
func NewDispatcher(logger *slog.Logger, registrations []Registration) *Dispatcher {
	d := &Dispatcher{
		registrations: registrations,
		logger:        logger,
	}
	d.logger.Info("dispatcher initialized", "channels", d.Channels())
	return d
}

// Channels returns the names of all registered channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.registrations))
	for _, r := range d.registrations {
		names = append(names, r.Notifier.Name())
	}
	return names
}

// Dispatch attempts delivery of e to every registered channel and waits for
// all attempts to finish. It returns one DeliveryResult per registration
// plus a success count, and never returns early on partial failure.
//
// An empty registration set is valid (log-only deployment): the event is
// dropped with a warning and a zero-attempt result is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, e event.Event) AggregateResult {
	if len(d.registrations) == 0 {
		d.logger.Warn("no notifiers configured, event dropped", "event_id", e.ID, "title", e.Title)
		return AggregateResult{EventID: e.ID, Results: []DeliveryResult{}}
	}

	results := make([]DeliveryResult, len(d.registrations))
	var wg sync.WaitGroup
	for i, reg := range d.registrations {
		wg.Add(1)
		go func(i int, reg Registration) {
			defer wg.Done()
			results[i] = d.deliver(ctx, reg, e)
		}(i, reg)
	}
	wg.Wait()

	agg := AggregateResult{
		EventID: e.ID,
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Succeeded {
			agg.Succeeded++
		} else {
			d.logger.Error("delivery failed",
				"event_id", e.ID, "channel", r.Channel, "error", r.Error)
		}
	}

	eventsDispatched.Inc()
	d.logger.Info("event dispatched",
		"event_id", e.ID, "title", e.Title,
		"succeeded", agg.Succeeded, "total", agg.Total)
	return agg
}

// deliver runs one channel's attempt with panic isolation. The named return
// lets the recover handler substitute a failed result.
func (d *Dispatcher) deliver(ctx context.Context, reg Registration, e event.Event) (res DeliveryResult) {
	name := reg.Notifier.Name()
	defer func() {
		if r := recover(); r != nil {
			res = DeliveryResult{
				Channel: name,
				Error:   fmt.Sprintf("panic: %v", r),
			}
			deliveries.WithLabelValues(name, outcomeFailure).Inc()
		}
	}()

	if !e.Severity.AtLeast(reg.MinSeverity) {
		deliveries.WithLabelValues(name, outcomeSkipped).Inc()
		return DeliveryResult{Channel: name, Succeeded: true, Skipped: true}
	}

	if err := reg.Notifier.Send(ctx, e); err != nil {
		deliveries.WithLabelValues(name, outcomeFailure).Inc()
		return DeliveryResult{Channel: name, Error: err.Error()}
	}
	deliveries.WithLabelValues(name, outcomeSuccess).Inc()
	return DeliveryResult{Channel: name, Succeeded: true}
}
