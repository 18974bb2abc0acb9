// Package tools registers the relay's MCP tool catalogue: Proxmox status
// lookups, direct notification sends, and connection diagnostics. The
// catalogue is what an external agent workflow (n8n or any MCP client)
// drives the relay through.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/proxlab/pvebridge/internal/build"
	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/listen"
	"github.com/proxlab/pvebridge/internal/notify"
	"github.com/proxlab/pvebridge/internal/proxmox"
)

// ServerName is the MCP server implementation name.
const ServerName = "pvebridge"

// Deps are the collaborators the tool handlers call into.
type Deps struct {
	Config     *config.Config
	Dispatcher *notify.Dispatcher
	Supervisor *listen.Supervisor
	Proxmox    *proxmox.Client
	// Testers are the channels and listeners that support connection
	// probing, keyed by their name.
	Testers map[string]notify.ConnectionTester
	Logger  *slog.Logger
}

// NewServer builds the MCP server with every tool registered.
func NewServer(deps Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: build.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cluster_status",
		Description: "Get an aggregate status of all Proxmox nodes, VMs, containers and PBS datastores.",
	}, deps.getClusterStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_node_status",
		Description: "Get detailed status (CPU, memory, uptime) of a specific Proxmox node.",
	}, deps.getNodeStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_vm_status",
		Description: "Get status of QEMU virtual machines, optionally filtered by node and VM ID.",
	}, deps.getVMStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_lxc_status",
		Description: "Get status of LXC containers, optionally filtered by node and container ID.",
	}, deps.getLXCStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_notification",
		Description: "Send a notification to every configured output channel and report per-channel delivery results.",
	}, deps.sendNotification)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "test_connections",
		Description: "Probe every configured channel, listener and Proxmox node for connectivity.",
	}, deps.testConnections)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_status",
		Description: "Report the relay's listener states and configured output channels.",
	}, deps.relayStatus)

	return server
}

// jsonResult renders v as an indented JSON text content block.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// pveCredentials resolves credentials for every configured PVE node,
// skipping (and logging) nodes with incomplete settings.
func (d Deps) pveCredentials() []config.NodeCredentials {
	var out []config.NodeCredentials
	for _, name := range d.Config.PVENodes {
		creds := d.Config.PVENode(name)
		if !creds.Complete() {
			d.Logger.Warn("skipping node with incomplete credentials", "node", name)
			continue
		}
		out = append(out, creds)
	}
	return out
}
