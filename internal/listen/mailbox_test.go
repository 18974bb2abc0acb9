package listen

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailboxListener_MissingConfigIsStartFailure(t *testing.T) {
	l := NewMailboxListener("", "", "", "INBOX", time.Second,
		func(string, string, map[string]string) {}, slog.New(slog.DiscardHandler))
	assert.Error(t, l.Run(context.Background(), func(State) {}))
}

func TestMailboxListener_SlowPollsDoNotOverlap(t *testing.T) {
	l := NewMailboxListener("imap.example.com:993", "user", "pass", "INBOX",
		20*time.Millisecond, func(string, string, map[string]string) {}, slog.New(slog.DiscardHandler))

	// The poll takes several intervals; an overlapping run would search the
	// same unseen messages again before the first marks them seen.
	var active, runs atomic.Int64
	var overlapped atomic.Bool
	l.pollFn = func(context.Context) {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		runs.Add(1)
		time.Sleep(70 * time.Millisecond)
		active.Add(-1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx, func(State) {})
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mailbox listener did not stop")
	}

	assert.False(t, overlapped.Load(), "polls ran concurrently")
}
