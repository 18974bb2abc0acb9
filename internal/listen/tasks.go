package listen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/proxmox"
)

// TaskStreamListener follows the task websocket stream of one or more PVE
// nodes and emits an event per finished task. Each node connection
// reconnects independently at a fixed interval until stopped.
type TaskStreamListener struct {
	nodes      []config.NodeCredentials
	interval   time.Duration
	httpClient *http.Client
	emit       EmitFunc
	logger     *slog.Logger
}

// NewTaskStreamListener creates a TaskStreamListener over the given nodes.
// The HTTP client carries the relay's TLS verification policy.
func NewTaskStreamListener(nodes []config.NodeCredentials, interval time.Duration, httpClient *http.Client, emit EmitFunc, logger *slog.Logger) *TaskStreamListener {
	return &TaskStreamListener{
		nodes:      nodes,
		interval:   interval,
		httpClient: httpClient,
		emit:       emit,
		logger:     logger,
	}
}

// Name returns the source identifier.
func (l *TaskStreamListener) Name() string { return "tasks" }

// connTracker counts live node streams so the listener reports state for
// the node set as a whole: Running while any stream is up, Reconnecting
// only once none are. One node dropping while others stay connected is a
// per-node log line, not a listener state change.
type connTracker struct {
	report    ReportFunc
	connected atomic.Int64
}

func (t *connTracker) up() {
	t.connected.Add(1)
	t.report(StateRunning)
}

func (t *connTracker) down() { t.connected.Add(-1) }

func (t *connTracker) anyUp() bool { return t.connected.Load() > 0 }

// Run streams every configured node concurrently until ctx is cancelled.
func (l *TaskStreamListener) Run(ctx context.Context, report ReportFunc) error {
	if len(l.nodes) == 0 {
		return errors.New("no PVE nodes with complete credentials configured")
	}

	tracker := &connTracker{report: report}
	var wg sync.WaitGroup
	for _, node := range l.nodes {
		wg.Add(1)
		go func(node config.NodeCredentials) {
			defer wg.Done()
			l.streamNode(ctx, node, tracker)
		}(node)
	}
	wg.Wait()
	return nil
}

// streamNode is one node's reconnect loop: connect, read until the
// transport drops, wait the fixed interval, retry. Stops only on ctx
// cancellation, including mid-backoff.
func (l *TaskStreamListener) streamNode(ctx context.Context, node config.NodeCredentials, tracker *connTracker) {
	for {
		err := l.streamOnce(ctx, node, tracker)
		if ctx.Err() != nil {
			return
		}
		if !tracker.anyUp() {
			tracker.report(StateReconnecting)
		}
		l.logger.Warn("task stream disconnected, will reconnect",
			"node", node.Node, "interval", l.interval, "error", err)
		if waitInterval(ctx, l.interval) != nil {
			return
		}
	}
}

func (l *TaskStreamListener) streamOnce(ctx context.Context, node config.NodeCredentials, tracker *connTracker) error {
	url := fmt.Sprintf("wss://%s:%d/api2/json/nodes/%s/tasks?type=vm", node.Host, proxmox.PVEPort, node.Node)
	header := http.Header{}
	header.Set("Authorization", proxmox.AuthHeader(node))

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: l.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", node.Node, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	tracker.up()
	defer tracker.down()
	l.logger.Info("task stream connected", "node", node.Node)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		l.handleTask(node.Node, data)
	}
}

// taskRecord is the subset of a Proxmox task entry the relay cares about.
type taskRecord struct {
	UPID   string `json:"upid"`
	Type   string `json:"type"`
	ID     string `json:"id"`
	User   string `json:"user"`
	Status string `json:"status"`
	Node   string `json:"node"`
}

func (l *TaskStreamListener) handleTask(node string, data []byte) {
	var task taskRecord
	if err := json.Unmarshal(data, &task); err != nil {
		l.logger.Warn("unparseable task message", "node", node, "error", err)
		return
	}
	if task.Type == "" {
		return
	}
	if task.Node == "" {
		task.Node = node
	}

	severity := "info"
	if task.Status != "" && !strings.EqualFold(task.Status, "OK") {
		severity = "warning"
	}

	body := fmt.Sprintf("Task %s on node %s", task.Type, task.Node)
	if task.ID != "" {
		body += fmt.Sprintf(" for %s", task.ID)
	}
	if task.Status != "" {
		body += fmt.Sprintf(" finished with status %s", task.Status)
	}

	l.emit("Proxmox Task: "+task.Type, body, map[string]string{
		"event_type": "task",
		"node":       task.Node,
		"vm_id":      task.ID,
		"user":       task.User,
		"upid":       task.UPID,
		"severity":   severity,
	})
}

// TestConnection dials each configured node's task stream once.
func (l *TaskStreamListener) TestConnection(ctx context.Context) error {
	if len(l.nodes) == 0 {
		return errors.New("no PVE nodes configured")
	}
	for _, node := range l.nodes {
		url := fmt.Sprintf("wss://%s:%d/api2/json/nodes/%s/tasks?type=vm", node.Host, proxmox.PVEPort, node.Node)
		header := http.Header{}
		header.Set("Authorization", proxmox.AuthHeader(node))

		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPClient: l.httpClient,
			HTTPHeader: header,
		})
		if err != nil {
			return fmt.Errorf("node %s: %w", node.Node, err)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}
