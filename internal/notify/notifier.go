// Package notify implements the output side of the relay: the Notifier
// contract, the concurrent fan-out dispatcher, and the shipped delivery
// channels (Discord webhook, Gotify push, SMTP email).
package notify

import (
	"context"

	"github.com/proxlab/pvebridge/internal/event"
)

// Notifier is the contract for one output channel: a capability that
// attempts delivery of one event and reports the outcome. Well-behaved
// implementations catch their own transport errors and return them; the
// dispatcher additionally converts panics into failed results so that no
// channel can take down its siblings.
type Notifier interface {
	// Name returns the stable channel identifier used in logs and results.
	Name() string
	// Send delivers the event. Timeout policy belongs to the
	// implementation; the dispatcher imposes none.
	Send(ctx context.Context, e event.Event) error
}

// ConnectionTester is the optional capability for channels and listeners
// that can probe their transport without producing a real notification.
// Resolved with a plain type assertion, never reflection.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// Registration binds a Notifier to its routing policy. The registration set
// of a dispatcher is fixed at construction.
type Registration struct {
	Notifier Notifier
	// MinSeverity is the lowest severity this channel receives. Events
	// below it are skipped, which still counts as a successful delivery.
	MinSeverity event.Severity
}

// Register wraps a Notifier in a Registration that receives every severity.
func Register(n Notifier) Registration {
	return Registration{Notifier: n, MinSeverity: event.SeverityInfo}
}

// DeliveryResult is the outcome of one channel's attempt for one event.
// It is always produced, even when the channel panicked.
type DeliveryResult struct {
	Channel   string `json:"channel"`
	Succeeded bool   `json:"succeeded"`
	// Skipped marks deliveries suppressed by severity routing.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AggregateResult is the combined outcome of one fan-out across all
// registered channels. Partial failure is data, not an error.
type AggregateResult struct {
	EventID   string           `json:"event_id"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Results   []DeliveryResult `json:"results"`
}

// Failed returns the number of channels that did not succeed.
func (a AggregateResult) Failed() int {
	return a.Total - a.Succeeded
}
