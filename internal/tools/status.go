package tools

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/proxmox"
)

type clusterStatusParams struct {
	IncludeDetails bool `json:"include_details,omitempty" jsonschema:"Include the full per-resource listing, not just the summary."`
}

type clusterSummary struct {
	QueriedVia    string             `json:"queried_via"`
	Nodes         int                `json:"nodes"`
	NodesOnline   int                `json:"nodes_online"`
	VMs           int                `json:"vms"`
	VMsRunning    int                `json:"vms_running"`
	Containers    int                `json:"containers"`
	CTsRunning    int                `json:"containers_running"`
	PBSDatastores []pbsDatastoreInfo `json:"pbs_datastores,omitempty"`
	Resources     []proxmox.Resource `json:"resources,omitempty"`
	Errors        []string           `json:"errors,omitempty"`
}

type pbsDatastoreInfo struct {
	Node  string `json:"node"`
	Store string `json:"store"`
	Used  int64  `json:"used"`
	Total int64  `json:"total"`
}

func (d Deps) getClusterStatus(ctx context.Context, _ *mcp.CallToolRequest, params *clusterStatusParams) (*mcp.CallToolResult, any, error) {
	nodes := d.pveCredentials()
	if len(nodes) == 0 {
		return nil, nil, errors.New("no PVE nodes with complete credentials configured")
	}

	var (
		summary clusterSummary
		fetched bool
		lastErr error
	)
	// Cluster resources are cluster-wide, so any reachable node will do.
	for _, creds := range nodes {
		resources, err := d.Proxmox.ClusterResources(ctx, creds)
		if err != nil {
			lastErr = err
			continue
		}
		summary.QueriedVia = creds.Node
		for _, r := range resources {
			switch r.Type {
			case "node":
				summary.Nodes++
				if r.Status == "online" {
					summary.NodesOnline++
				}
			case "qemu":
				summary.VMs++
				if r.Status == "running" {
					summary.VMsRunning++
				}
			case "lxc":
				summary.Containers++
				if r.Status == "running" {
					summary.CTsRunning++
				}
			}
		}
		if params.IncludeDetails {
			summary.Resources = resources
		}
		fetched = true
		break
	}
	if !fetched {
		return nil, nil, fmt.Errorf("all PVE nodes unreachable: %w", lastErr)
	}

	for _, name := range d.Config.PBSNodes {
		creds := d.Config.PBSNode(name)
		if !creds.Complete() {
			summary.Errors = append(summary.Errors, fmt.Sprintf("pbs node %s: incomplete credentials", name))
			continue
		}
		stores, err := d.Proxmox.PBSDatastores(ctx, creds)
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		for _, s := range stores {
			summary.PBSDatastores = append(summary.PBSDatastores, pbsDatastoreInfo{
				Node: name, Store: s.Store, Used: s.Used, Total: s.Total,
			})
		}
	}

	return jsonResult(summary)
}

type nodeStatusParams struct {
	Node string `json:"node" jsonschema:"Name of the PVE node."`
}

func (d Deps) getNodeStatus(ctx context.Context, _ *mcp.CallToolRequest, params *nodeStatusParams) (*mcp.CallToolResult, any, error) {
	if params.Node == "" {
		return nil, nil, errors.New("node is required")
	}
	creds := d.Config.PVENode(params.Node)
	if !creds.Complete() {
		return nil, nil, fmt.Errorf("node %s: incomplete credentials", params.Node)
	}

	status, err := d.Proxmox.GetNodeStatus(ctx, creds, params.Node)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(status)
}

type guestStatusParams struct {
	Node string `json:"node,omitempty" jsonschema:"Restrict to one node. Defaults to all configured nodes."`
	VMID int    `json:"vmid,omitempty" jsonschema:"Restrict to one guest ID."`
}

type guestInfo struct {
	Node string `json:"node"`
	proxmox.Guest
}

// collectGuests runs list against one node or every configured node and
// applies the optional vmid filter. Per-node errors are collected, not
// fatal, so one unreachable node does not hide the rest.
func (d Deps) collectGuests(ctx context.Context, params *guestStatusParams,
	list func(context.Context, config.NodeCredentials, string) ([]proxmox.Guest, error),
) (*mcp.CallToolResult, any, error) {
	nodes := d.pveCredentials()
	if params.Node != "" {
		creds := d.Config.PVENode(params.Node)
		if !creds.Complete() {
			return nil, nil, fmt.Errorf("node %s: incomplete credentials", params.Node)
		}
		nodes = []config.NodeCredentials{creds}
	}
	if len(nodes) == 0 {
		return nil, nil, errors.New("no PVE nodes with complete credentials configured")
	}

	out := struct {
		Guests []guestInfo `json:"guests"`
		Errors []string    `json:"errors,omitempty"`
	}{Guests: []guestInfo{}}

	for _, creds := range nodes {
		guests, err := list(ctx, creds, creds.Node)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		for _, g := range guests {
			if params.VMID != 0 && g.VMID != params.VMID {
				continue
			}
			out.Guests = append(out.Guests, guestInfo{Node: creds.Node, Guest: g})
		}
	}
	return jsonResult(out)
}

func (d Deps) getVMStatus(ctx context.Context, _ *mcp.CallToolRequest, params *guestStatusParams) (*mcp.CallToolResult, any, error) {
	return d.collectGuests(ctx, params, d.Proxmox.ListVMs)
}

func (d Deps) getLXCStatus(ctx context.Context, _ *mcp.CallToolRequest, params *guestStatusParams) (*mcp.CallToolResult, any, error) {
	return d.collectGuests(ctx, params, d.Proxmox.ListContainers)
}
