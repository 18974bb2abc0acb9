// Package listen implements the input side of the relay: the Listener
// contract, the supervisor that runs the listener set as a group, and the
// shipped sources (UDP syslog, Proxmox task stream, Gotify stream, IMAP
// mailbox poll).
package listen

import "context"

// State describes where a listener is in its lifecycle. Transitions are
// driven by the supervisor and by the listener's own run loop through the
// report callback it receives.
type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateReconnecting State = "reconnecting"
	StateStopping     State = "stopping"
)

// EmitFunc is the callback a listener invokes for every normalized event it
// produces. It must be safe to call from multiple goroutines and must not
// block on delivery; the supervisor's OnEvent satisfies both.
type EmitFunc func(title, body string, attrs map[string]string)

// ReportFunc lets a listener's run loop publish its current state
// (Running after a successful connect, Reconnecting after a drop).
type ReportFunc func(State)

// Listener ingests events from one external source. Run blocks until ctx is
// cancelled; it owns the source's reconnect policy and reports state
// changes through report. A non-nil return from Run marks a start failure
// (for example missing configuration) and leaves the listener stopped.
type Listener interface {
	Name() string
	Run(ctx context.Context, report ReportFunc) error
}
