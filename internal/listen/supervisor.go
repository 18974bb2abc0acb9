package listen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/proxlab/pvebridge/internal/event"
	"github.com/proxlab/pvebridge/internal/notify"
)

// defaultStopGrace bounds how long StopAll waits for each listener to
// acknowledge cancellation before giving up on it.
const defaultStopGrace = 5 * time.Second

// registration tracks one listener and its lifecycle state.
type registration struct {
	listener Listener

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *registration) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *registration) getState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Supervisor owns the registered listener set, starts and stops it as a
// group, and is the single ingress path (OnEvent) from any listener into
// the dispatcher. The registration set is fixed before StartAll; the only
// mutable shared state is per-listener lifecycle tracking, guarded here.
type Supervisor struct {
	logger    *slog.Logger
	stopGrace time.Duration

	mu            sync.Mutex
	registrations []*registration
	dispatcher    *notify.Dispatcher
	stopping      bool

	inflight sync.WaitGroup
}

// NewSupervisor creates a Supervisor with no dispatcher attached. Events
// arriving before SetDispatcher are logged and dropped, so an eager
// listener racing setup cannot crash the process.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{
		logger:    logger,
		stopGrace: defaultStopGrace,
	}
}

// SetDispatcher attaches the dispatcher that OnEvent forwards into.
func (s *Supervisor) SetDispatcher(d *notify.Dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// Register adds a listener. Must be called before StartAll.
func (s *Supervisor) Register(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = append(s.registrations, &registration{
		listener: l,
		state:    StateStopped,
	})
}

// Listeners returns the registered listener set.
func (s *Supervisor) Listeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Listener, 0, len(s.registrations))
	for _, r := range s.registrations {
		out = append(out, r.listener)
	}
	return out
}

// States returns a snapshot of every listener's current state.
func (s *Supervisor) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.registrations))
	for _, r := range s.registrations {
		out[r.listener.Name()] = r.getState()
	}
	return out
}

// StartAll starts every registered listener as an independent goroutine and
// returns once all starts have been issued. It does not wait for listeners
// to report Running; streaming sources may take arbitrarily long to
// establish their first connection. A listener whose Run returns an error
// is logged and left Stopped without affecting the others.
func (s *Supervisor) StartAll(ctx context.Context) {
	s.mu.Lock()
	regs := make([]*registration, len(s.registrations))
	copy(regs, s.registrations)
	s.mu.Unlock()

	for _, reg := range regs {
		if reg.getState() != StateStopped {
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		reg.mu.Lock()
		reg.state = StateStarting
		reg.cancel = cancel
		reg.done = make(chan struct{})
		reg.mu.Unlock()

		name := reg.listener.Name()
		s.logger.Info("starting listener", "listener", name)

		go func(reg *registration) {
			defer close(reg.done)
			err := reg.listener.Run(runCtx, reg.setState)
			reg.setState(StateStopped)
			if err != nil && runCtx.Err() == nil {
				s.logger.Warn("listener failed to start", "listener", name, "error", err)
			} else {
				s.logger.Info("listener stopped", "listener", name)
			}
		}(reg)
	}
}

// StopAll cancels every running listener concurrently, waits up to the
// grace period for each to acknowledge, then drains in-flight dispatches.
// It is idempotent: a second call finds everything stopped and returns.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopping = true
	regs := make([]*registration, len(s.registrations))
	copy(regs, s.registrations)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		reg.mu.Lock()
		cancel, done := reg.cancel, reg.done
		alreadyStopped := reg.state == StateStopped || cancel == nil
		if !alreadyStopped {
			reg.state = StateStopping
		}
		reg.mu.Unlock()

		if alreadyStopped {
			continue
		}

		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			cancel()
			select {
			case <-done:
			case <-time.After(s.stopGrace):
				s.logger.Warn("listener did not stop within grace period",
					"listener", reg.listener.Name())
			}
		}(reg)
	}
	wg.Wait()

	// Events already handed to the dispatcher are allowed to complete.
	s.inflight.Wait()
}

// OnEvent is the sole ingress point from any listener. It constructs the
// Event and schedules dispatch without blocking the caller's read loop;
// only direct tool-invoked notifications await an AggregateResult, and they
// call the dispatcher themselves.
//
// Safe for concurrent use by multiple listeners.
func (s *Supervisor) OnEvent(title, body string, attrs map[string]string) {
	e := event.New(title, body, attrs)
	if err := e.Validate(); err != nil {
		s.logger.Warn("dropping malformed event", "title", title, "error", err)
		return
	}

	s.mu.Lock()
	d := s.dispatcher
	if d == nil || s.stopping {
		s.mu.Unlock()
		s.logger.Warn("dropping event, dispatcher not ready", "title", title)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		d.Dispatch(context.Background(), e)
	}()
}
