package listen

import (
	"context"
	"time"
)

// waitInterval sleeps for the fixed reconnect interval or until ctx is
// cancelled, whichever comes first. Returns ctx.Err when cancelled so
// reconnect loops terminate mid-backoff.
func waitInterval(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
