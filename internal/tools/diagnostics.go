package tools

import (
	"context"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/proxlab/pvebridge/internal/build"
	"github.com/proxlab/pvebridge/internal/event"
	"github.com/proxlab/pvebridge/internal/proxmox"
)

type sendNotificationParams struct {
	Title      string            `json:"title" jsonschema:"Notification title."`
	Body       string            `json:"body" jsonschema:"Notification message body."`
	Severity   string            `json:"severity,omitempty" jsonschema:"One of info, warning, error, critical. Defaults to info."`
	Attributes map[string]string `json:"attributes,omitempty" jsonschema:"Optional structured metadata (node, vm_id, ...)."`
}

// sendNotification dispatches a direct notification and, unlike
// listener-sourced events, awaits the aggregate result so the caller sees
// per-channel outcomes.
func (d Deps) sendNotification(ctx context.Context, _ *mcp.CallToolRequest, params *sendNotificationParams) (*mcp.CallToolResult, any, error) {
	attrs := make(map[string]string, len(params.Attributes)+1)
	for k, v := range params.Attributes {
		attrs[k] = v
	}
	if params.Severity != "" {
		attrs[event.AttrSeverity] = params.Severity
	}

	e := event.New(params.Title, params.Body, attrs)
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}

	return jsonResult(d.Dispatcher.Dispatch(ctx, e))
}

// probeTimeout bounds each individual connection test.
const probeTimeout = 10 * time.Second

type testConnectionsParams struct{}

func (d Deps) testConnections(ctx context.Context, _ *mcp.CallToolRequest, _ *testConnectionsParams) (*mcp.CallToolResult, any, error) {
	results := make(map[string]string)

	probe := func(name string, fn func(context.Context) error) {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := fn(probeCtx); err != nil {
			results[name] = "failed: " + err.Error()
			return
		}
		results[name] = "ok"
	}

	for name, tester := range d.Testers {
		probe(name, tester.TestConnection)
	}

	for _, name := range d.Config.PVENodes {
		creds := d.Config.PVENode(name)
		if !creds.Complete() {
			results["pve/"+name] = "unsupported: incomplete credentials"
			continue
		}
		probe("pve/"+name, func(c context.Context) error {
			_, err := d.Proxmox.Ping(c, creds, proxmox.PVEPort)
			return err
		})
	}
	for _, name := range d.Config.PBSNodes {
		creds := d.Config.PBSNode(name)
		if !creds.Complete() {
			results["pbs/"+name] = "unsupported: incomplete credentials"
			continue
		}
		probe("pbs/"+name, func(c context.Context) error {
			_, err := d.Proxmox.Ping(c, creds, proxmox.PBSPort)
			return err
		})
	}

	return jsonResult(results)
}

type relayStatusParams struct{}

func (d Deps) relayStatus(_ context.Context, _ *mcp.CallToolRequest, _ *relayStatusParams) (*mcp.CallToolResult, any, error) {
	states := d.Supervisor.States()
	listeners := make(map[string]string, len(states))
	for name, state := range states {
		listeners[name] = string(state)
	}

	return jsonResult(struct {
		Version   string            `json:"version"`
		Channels  []string          `json:"channels"`
		Listeners map[string]string `json:"listeners"`
	}{
		Version:   build.Version,
		Channels:  d.Dispatcher.Channels(),
		Listeners: listeners,
	})
}
