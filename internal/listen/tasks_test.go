package listen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnTracker_OneNodeDropDoesNotDegradeListener(t *testing.T) {
	var mu sync.Mutex
	var reported []State
	tr := &connTracker{report: func(s State) {
		mu.Lock()
		reported = append(reported, s)
		mu.Unlock()
	}}

	// Two node streams connect.
	tr.up()
	tr.up()
	assert.Equal(t, []State{StateRunning, StateRunning}, reported)

	// One drops: another stream is still connected, so the listener as a
	// whole stays Running and no Reconnecting report is warranted.
	tr.down()
	assert.True(t, tr.anyUp())

	// The last one drops too: now the listener is degraded.
	tr.down()
	assert.False(t, tr.anyUp())
}
