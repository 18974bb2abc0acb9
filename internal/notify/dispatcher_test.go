package notify_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxlab/pvebridge/internal/event"
	"github.com/proxlab/pvebridge/internal/notify"
)

// stubNotifier records every event it receives and fails or panics on demand.
type stubNotifier struct {
	name   string
	err    error
	panicV any
	mu     sync.Mutex
	sent   []event.Event
	calls  atomic.Int64
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(_ context.Context, e event.Event) error {
	s.calls.Add(1)
	s.mu.Lock()
	s.sent = append(s.sent, e)
	s.mu.Unlock()
	if s.panicV != nil {
		panic(s.panicV)
	}
	return s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func resultFor(t *testing.T, agg notify.AggregateResult, channel string) notify.DeliveryResult {
	t.Helper()
	for _, r := range agg.Results {
		if r.Channel == channel {
			return r
		}
	}
	t.Fatalf("no result for channel %q", channel)
	return notify.DeliveryResult{}
}

func TestDispatch_PartialFailureIsolation(t *testing.T) {
	a := &stubNotifier{name: "A"}
	b := &stubNotifier{name: "B", err: errors.New("ConnectionRefused")}

	d := notify.NewDispatcher(testLogger(), []notify.Registration{
		notify.Register(a), notify.Register(b),
	})

	e := event.New("Test", "hello", map[string]string{"severity": "info"})
	agg := d.Dispatch(context.Background(), e)

	assert.Equal(t, 2, agg.Total)
	assert.Equal(t, 1, agg.Succeeded)
	assert.Equal(t, 1, agg.Failed())
	require.Len(t, agg.Results, 2)

	ra := resultFor(t, agg, "A")
	assert.True(t, ra.Succeeded)
	assert.Empty(t, ra.Error)

	rb := resultFor(t, agg, "B")
	assert.False(t, rb.Succeeded)
	assert.Equal(t, "ConnectionRefused", rb.Error)
}

func TestDispatch_PanickingNotifierDoesNotCrashSiblings(t *testing.T) {
	good := &stubNotifier{name: "good"}
	bad := &stubNotifier{name: "bad", panicV: "boom"}

	d := notify.NewDispatcher(testLogger(), []notify.Registration{
		notify.Register(bad), notify.Register(good),
	})

	agg := d.Dispatch(context.Background(), event.New("Test", "hello", nil))

	assert.Equal(t, 2, agg.Total)
	assert.Equal(t, 1, agg.Succeeded)
	rb := resultFor(t, agg, "bad")
	assert.False(t, rb.Succeeded)
	assert.Contains(t, rb.Error, "panic")
	assert.True(t, resultFor(t, agg, "good").Succeeded)
}

func TestDispatch_EmptyRegistrationSet(t *testing.T) {
	d := notify.NewDispatcher(testLogger(), nil)

	agg := d.Dispatch(context.Background(), event.New("Test", "hello", nil))

	assert.Equal(t, 0, agg.Total)
	assert.Equal(t, 0, agg.Succeeded)
	assert.Empty(t, agg.Results)
}

func TestDispatch_AllChannelsFailStillReturnsResult(t *testing.T) {
	a := &stubNotifier{name: "A", err: errors.New("down")}
	b := &stubNotifier{name: "B", err: errors.New("down")}

	d := notify.NewDispatcher(testLogger(), []notify.Registration{
		notify.Register(a), notify.Register(b),
	})

	agg := d.Dispatch(context.Background(), event.New("Test", "hello", nil))
	assert.Equal(t, 0, agg.Succeeded)
	assert.Equal(t, 2, agg.Failed())
}

func TestDispatch_ConcurrentDispatchesNoCrossTalk(t *testing.T) {
	const events = 10
	notifiers := []*stubNotifier{
		{name: "n1"}, {name: "n2"}, {name: "n3"},
	}
	regs := make([]notify.Registration, 0, len(notifiers))
	for _, n := range notifiers {
		regs = append(regs, notify.Register(n))
	}
	d := notify.NewDispatcher(testLogger(), regs)

	var wg sync.WaitGroup
	aggs := make([]notify.AggregateResult, events)
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := event.New(fmt.Sprintf("event-%d", i), "body", map[string]string{
				"seq": fmt.Sprintf("%d", i),
			})
			aggs[i] = d.Dispatch(context.Background(), e)
		}(i)
	}
	wg.Wait()

	// Exactly N×M send invocations.
	for _, n := range notifiers {
		assert.EqualValues(t, events, n.calls.Load())
	}

	// Each aggregate corresponds to exactly one input event.
	seen := make(map[string]bool)
	for i, agg := range aggs {
		assert.Equal(t, len(notifiers), agg.Total)
		assert.Equal(t, len(notifiers), agg.Succeeded)
		assert.False(t, seen[agg.EventID], "aggregate %d shares an event id", i)
		seen[agg.EventID] = true
	}

	// No notifier observed another event's data under a mismatched id.
	for _, n := range notifiers {
		ids := make(map[string]string)
		for _, e := range n.sent {
			ids[e.ID] = e.Attributes["seq"]
		}
		assert.Len(t, ids, events)
	}
}

func TestDispatch_SeverityRoutingSkips(t *testing.T) {
	quiet := &stubNotifier{name: "quiet"}
	loud := &stubNotifier{name: "loud"}

	d := notify.NewDispatcher(testLogger(), []notify.Registration{
		{Notifier: quiet, MinSeverity: event.SeverityCritical},
		{Notifier: loud, MinSeverity: event.SeverityInfo},
	})

	agg := d.Dispatch(context.Background(), event.New("Warn", "w", map[string]string{
		"severity": "warning",
	}))

	// A skipped channel still produces a succeeded result.
	assert.Equal(t, 2, agg.Total)
	assert.Equal(t, 2, agg.Succeeded)
	rq := resultFor(t, agg, "quiet")
	assert.True(t, rq.Succeeded)
	assert.True(t, rq.Skipped)
	assert.EqualValues(t, 0, quiet.calls.Load())
	assert.EqualValues(t, 1, loud.calls.Load())

	crit := d.Dispatch(context.Background(), event.New("Crit", "c", map[string]string{
		"severity": "critical",
	}))
	assert.False(t, resultFor(t, crit, "quiet").Skipped)
	assert.EqualValues(t, 1, quiet.calls.Load())
}
