package listen

import (
	"fmt"
	"regexp"
	"strings"
)

// rfc3164 matches the classic syslog line shape:
// <priority>timestamp hostname tag: message
var rfc3164 = regexp.MustCompile(
	`^(?:<(\d+)>)?` +
		`(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+` +
		`(\S+)\s+` +
		`([^:]+):\s*` +
		`(.*)$`)

// proxmoxPattern recognizes one Proxmox log line family and builds the
// titled event for it.
type proxmoxPattern struct {
	eventType string
	re        *regexp.Regexp
	build     func(m []string) (title, body string, attrs map[string]string)
}

// proxmoxPatterns covers the Proxmox events worth notifying about:
// VM lifecycle, backups, cluster membership, storage and task failures.
var proxmoxPatterns = []proxmoxPattern{
	{
		eventType: "vm_start",
		re:        regexp.MustCompile(`starting VM (\d+) \(([^)]+)\)`),
		build: func(m []string) (string, string, map[string]string) {
			return "VM Started",
				fmt.Sprintf("VM %s (%s) started successfully", m[1], m[2]),
				map[string]string{"vm_id": m[1], "vm_name": m[2], "severity": "info"}
		},
	},
	{
		eventType: "vm_stop",
		re:        regexp.MustCompile(`VM (\d+) \(([^)]+)\) stopped`),
		build: func(m []string) (string, string, map[string]string) {
			return "VM Stopped",
				fmt.Sprintf("VM %s (%s) stopped", m[1], m[2]),
				map[string]string{"vm_id": m[1], "vm_name": m[2], "severity": "info"}
		},
	},
	{
		eventType: "vm_migrate",
		re:        regexp.MustCompile(`migration finished successfully, old VM (\d+) \(([^)]+)\)`),
		build: func(m []string) (string, string, map[string]string) {
			return "VM Migration Completed",
				fmt.Sprintf("Migration of VM %s (%s) completed successfully", m[1], m[2]),
				map[string]string{"vm_id": m[1], "vm_name": m[2], "severity": "info"}
		},
	},
	{
		eventType: "backup_start",
		re:        regexp.MustCompile(`starting backup of VM (\d+) to (.+)`),
		build: func(m []string) (string, string, map[string]string) {
			return "Backup Started",
				fmt.Sprintf("Backup of VM %s started to %s", m[1], m[2]),
				map[string]string{"vm_id": m[1], "backup_target": m[2], "severity": "info"}
		},
	},
	{
		eventType: "backup_finish",
		re:        regexp.MustCompile(`backup finished \(VM (\d+)\): (.+)`),
		build: func(m []string) (string, string, map[string]string) {
			severity := "warning"
			if strings.Contains(strings.ToLower(m[2]), "successful") {
				severity = "info"
			}
			return "Backup Completed",
				fmt.Sprintf("Backup of VM %s completed: %s", m[1], m[2]),
				map[string]string{"vm_id": m[1], "backup_result": m[2], "severity": severity}
		},
	},
	{
		eventType: "node_fence",
		re:        regexp.MustCompile(`node (\S+) fenced`),
		build: func(m []string) (string, string, map[string]string) {
			return "Node Fenced",
				fmt.Sprintf("Node %s has been fenced", m[1]),
				map[string]string{"node": m[1], "severity": "critical"}
		},
	},
	{
		eventType: "cluster_join",
		re:        regexp.MustCompile(`node (\S+) joined cluster`),
		build: func(m []string) (string, string, map[string]string) {
			return "Node Joined Cluster",
				fmt.Sprintf("Node %s joined the cluster", m[1]),
				map[string]string{"node": m[1], "severity": "info"}
		},
	},
	{
		eventType: "cluster_leave",
		re:        regexp.MustCompile(`node (\S+) left cluster`),
		build: func(m []string) (string, string, map[string]string) {
			return "Node Left Cluster",
				fmt.Sprintf("Node %s left the cluster", m[1]),
				map[string]string{"node": m[1], "severity": "warning"}
		},
	},
	{
		eventType: "storage_error",
		re:        regexp.MustCompile(`storage '(\S+)' is not available`),
		build: func(m []string) (string, string, map[string]string) {
			return "Storage Error",
				fmt.Sprintf("Storage '%s' is not available", m[1]),
				map[string]string{"storage": m[1], "severity": "critical"}
		},
	},
	{
		eventType: "task_error",
		re:        regexp.MustCompile(`TASK ERROR: (.+)`),
		build: func(m []string) (string, string, map[string]string) {
			return "Task Error",
				fmt.Sprintf("Task failed: %s", m[1]),
				map[string]string{"error_details": m[1], "severity": "error"}
		},
	},
	{
		eventType: "corosync",
		re:        regexp.MustCompile(`corosync.*membership changed`),
		build: func(_ []string) (string, string, map[string]string) {
			return "Cluster Membership Changed",
				"Corosync cluster membership has changed",
				map[string]string{"severity": "warning"}
		},
	},
}

// parseSyslogMessage normalizes one syslog line into an event. Recognized
// Proxmox lines get a descriptive title and structured attributes; lines
// that only parse as syslog become generic node events; anything else is
// forwarded raw so no message is silently lost.
func parseSyslogMessage(msg, source string) (title, body string, attrs map[string]string) {
	m := rfc3164.FindStringSubmatch(msg)
	if m == nil {
		return "Syslog Message", msg, map[string]string{
			"source":     source,
			"event_type": "raw",
		}
	}

	hostname, tag, content := m[3], strings.TrimSpace(m[4]), m[5]

	for _, p := range proxmoxPatterns {
		pm := p.re.FindStringSubmatch(content)
		if pm == nil {
			continue
		}
		title, body, attrs = p.build(pm)
		attrs["event_type"] = p.eventType
		attrs["hostname"] = hostname
		attrs["tag"] = tag
		attrs["source"] = source
		if _, ok := attrs["node"]; !ok {
			attrs["node"] = hostname
		}
		return title, body, attrs
	}

	return "Proxmox Event - " + hostname, content, map[string]string{
		"event_type": "generic",
		"hostname":   hostname,
		"tag":        tag,
		"source":     source,
	}
}
