// Package proxmox is a minimal REST client for the Proxmox VE and Proxmox
// Backup Server APIs, covering the read-only status surface the relay's
// tool catalogue exposes.
package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/proxlab/pvebridge/internal/config"
)

// Default API ports.
const (
	PVEPort = 8006
	PBSPort = 8007
)

// AuthHeader builds the Proxmox API-token authorization value for creds:
// PVEAPIToken=<user>!<token_name>=<token_value>.
func AuthHeader(creds config.NodeCredentials) string {
	return fmt.Sprintf("PVEAPIToken=%s!%s=%s", creds.User, creds.TokenName, creds.TokenValue)
}

// Client talks to PVE/PBS nodes over their JSON REST APIs.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client. verifySSL toggles TLS certificate
// verification; Proxmox nodes commonly run on self-signed certificates.
func NewClient(verifySSL bool) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifySSL} //nolint:gosec // admin opt-in for self-signed certs
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: transport},
	}
}

// HTTPClient exposes the underlying client so the task stream listener can
// dial websockets with the same TLS policy.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Resource is one entry from the PVE cluster resource listing.
type Resource struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Node   string  `json:"node"`
	Status string  `json:"status"`
	VMID   int     `json:"vmid"`
	CPU    float64 `json:"cpu"`
	MaxCPU int     `json:"maxcpu"`
	Mem    int64   `json:"mem"`
	MaxMem int64   `json:"maxmem"`
	Uptime int64   `json:"uptime"`
}

// NodeStatus is the detailed status of a single PVE node.
type NodeStatus struct {
	Uptime  int64     `json:"uptime"`
	CPU     float64   `json:"cpu"`
	LoadAvg []string  `json:"loadavg"`
	Memory  MemInfo   `json:"memory"`
	RootFS  MemInfo   `json:"rootfs"`
	KSM     *struct { //nolint:revive
		Shared int64 `json:"shared"`
	} `json:"ksm,omitempty"`
}

// MemInfo is a used/total pair as reported by PVE.
type MemInfo struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
}

// Guest is one QEMU VM or LXC container on a node.
type Guest struct {
	VMID   int     `json:"vmid"`
	Name   string  `json:"name"`
	Status string  `json:"status"`
	CPU    float64 `json:"cpu"`
	Mem    int64   `json:"mem"`
	MaxMem int64   `json:"maxmem"`
	Uptime int64   `json:"uptime"`
}

// Datastore is one PBS datastore usage entry.
type Datastore struct {
	Store string `json:"store"`
	Used  int64  `json:"used"`
	Total int64  `json:"total"`
	Avail int64  `json:"avail"`
}

// versionInfo is the minimal shape of the /version endpoint, used by Ping.
type versionInfo struct {
	Version string `json:"version"`
}

// get performs an authenticated GET against one node and decodes the
// payload's "data" envelope into out.
func (c *Client) get(ctx context.Context, creds config.NodeCredentials, port int, path string, out any) error {
	if !creds.Complete() {
		return fmt.Errorf("node %s: incomplete credentials", creds.Node)
	}

	url := fmt.Sprintf("https://%s:%d/api2/json%s", creds.Host, port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", AuthHeader(creds))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w", creds.Node, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node %s: %s returned %d: %s", creds.Node, path, resp.StatusCode, detail)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("node %s: decoding %s: %w", creds.Node, path, err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("node %s: decoding %s data: %w", creds.Node, path, err)
		}
	}
	return nil
}

// ClusterResources lists all nodes, VMs, containers and storages visible
// from the given PVE node.
func (c *Client) ClusterResources(ctx context.Context, creds config.NodeCredentials) ([]Resource, error) {
	var out []Resource
	if err := c.get(ctx, creds, PVEPort, "/cluster/resources", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetNodeStatus fetches the detailed status of one PVE node.
func (c *Client) GetNodeStatus(ctx context.Context, creds config.NodeCredentials, node string) (*NodeStatus, error) {
	var out NodeStatus
	if err := c.get(ctx, creds, PVEPort, "/nodes/"+node+"/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVMs lists the QEMU virtual machines on a node.
func (c *Client) ListVMs(ctx context.Context, creds config.NodeCredentials, node string) ([]Guest, error) {
	var out []Guest
	if err := c.get(ctx, creds, PVEPort, "/nodes/"+node+"/qemu", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContainers lists the LXC containers on a node.
func (c *Client) ListContainers(ctx context.Context, creds config.NodeCredentials, node string) ([]Guest, error) {
	var out []Guest
	if err := c.get(ctx, creds, PVEPort, "/nodes/"+node+"/lxc", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PBSDatastores lists datastore usage on a PBS node.
func (c *Client) PBSDatastores(ctx context.Context, creds config.NodeCredentials) ([]Datastore, error) {
	var out []Datastore
	if err := c.get(ctx, creds, PBSPort, "/status/datastore-usage", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks API reachability and authentication for one node by reading
// its version endpoint.
func (c *Client) Ping(ctx context.Context, creds config.NodeCredentials, port int) (string, error) {
	var out versionInfo
	if err := c.get(ctx, creds, port, "/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}
