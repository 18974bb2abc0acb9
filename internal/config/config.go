// Package config loads the relay's immutable configuration snapshot from
// environment variables, plus an optional YAML routing file. The snapshot is
// loaded once before any other component is constructed and never mutated.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Listener names accepted in ENABLED_EVENT_LISTENERS.
const (
	ListenerSyslog  = "SYSLOG"
	ListenerTasks   = "TASKS"
	ListenerGotify  = "GOTIFY"
	ListenerEmail   = "EMAIL"
	ListenerDiscord = "DISCORD"
)

// Config holds all relay settings loaded from environment variables.
type Config struct {
	// VerifySSL controls TLS certificate verification for outbound
	// connections to Proxmox and Gotify servers. Homelab deployments with
	// self-signed certificates typically leave this off.
	VerifySSL bool `envconfig:"VERIFY_SSL" default:"false"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DataDir is the root data directory. Defaults to ~/.pvebridge.
	DataDir string `envconfig:"PVEBRIDGE_DATA_DIR"`

	// Port is the HTTP server port for the MCP endpoint, /health and /metrics.
	Port int `envconfig:"PORT" default:"8790"`

	// RoutingFile overrides the path to the severity routing YAML file.
	// Defaults to <DataDir>/routing.yaml.
	RoutingFile string `envconfig:"ROUTING_FILE"`

	// PVENodes and PBSNodes name the virtualization nodes this relay talks
	// to. Per-node credentials are looked up via PVE_<NAME>_HOST-style
	// variables, see NodeCredentials.
	PVENodes []string `envconfig:"PVE_NODES"`
	PBSNodes []string `envconfig:"PBS_NODES"`

	// EnabledEventListeners gates which input listeners are constructed.
	// Recognized names: SYSLOG, TASKS, GOTIFY, EMAIL.
	EnabledEventListeners []string `envconfig:"ENABLED_EVENT_LISTENERS"`

	// SyslogListenAddr is the UDP address the syslog listener binds.
	SyslogListenAddr string `envconfig:"EVENT_SYSLOG_LISTEN_ADDR" default:":5514"`

	// TaskReconnectInterval is the fixed delay between reconnect attempts
	// for the Proxmox task stream listener.
	TaskReconnectInterval time.Duration `envconfig:"EVENT_WS_RECONNECT_INTERVAL" default:"30s"`

	// Gotify input stream (client token).
	GotifyInServerURL         string        `envconfig:"GOTIFY_IN_SERVER_URL"`
	GotifyInClientToken       string        `envconfig:"GOTIFY_IN_CLIENT_TOKEN"`
	GotifyInReconnectInterval time.Duration `envconfig:"GOTIFY_IN_RECONNECT_INTERVAL" default:"15s"`

	// Discord input. Messages are received on an HTTP endpoint served by
	// the relay (Discord has no pollable inbox); the webhook URL is only
	// used for connection testing.
	DiscordInWebhookURL string `envconfig:"DISCORD_IN_WEBHOOK_URL"`
	DiscordInListenPath string `envconfig:"DISCORD_IN_LISTEN_PATH" default:"/webhooks/discord"`

	// IMAP mailbox poll input.
	EmailHost         string        `envconfig:"EVENT_EMAIL_HOST"`
	EmailUsername     string        `envconfig:"EVENT_EMAIL_USERNAME"`
	EmailPassword     string        `envconfig:"EVENT_EMAIL_PASSWORD"`
	EmailMailbox      string        `envconfig:"EVENT_EMAIL_MAILBOX" default:"INBOX"`
	EmailPollInterval time.Duration `envconfig:"EVENT_EMAIL_POLL_INTERVAL" default:"60s"`

	// Gotify output (application token).
	GotifyOutEnabled   bool   `envconfig:"GOTIFY_OUT_ENABLED" default:"false"`
	GotifyOutServerURL string `envconfig:"GOTIFY_OUT_SERVER_URL"`
	GotifyOutAppToken  string `envconfig:"GOTIFY_OUT_APP_TOKEN"`

	// Discord output (webhook).
	DiscordOutEnabled    bool   `envconfig:"DISCORD_OUT_ENABLED" default:"false"`
	DiscordOutWebhookURL string `envconfig:"DISCORD_OUT_WEBHOOK_URL"`

	// Email output (SMTP).
	NotifyEmailEnabled bool   `envconfig:"NOTIFY_EMAIL_ENABLED" default:"false"`
	SMTPHost           string `envconfig:"SMTP_HOST"`
	SMTPPort           int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername       string `envconfig:"SMTP_USERNAME"`
	SMTPPassword       string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom           string `envconfig:"SMTP_FROM"`
	SMTPTo             string `envconfig:"SMTP_TO"`
	SMTPEncryption     string `envconfig:"SMTP_ENCRYPTION" default:"starttls"` // "none", "starttls", "ssl_tls"
}

// Load reads Config from environment variables using envconfig.
// DataDir defaults to ~/.pvebridge if not set.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".pvebridge")
	}
	if c.RoutingFile == "" {
		c.RoutingFile = filepath.Join(c.DataDir, "routing.yaml")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ListenerEnabled reports whether the named listener appears in
// ENABLED_EVENT_LISTENERS. Matching is case-insensitive.
func (c *Config) ListenerEnabled(name string) bool {
	for _, l := range c.EnabledEventListeners {
		if strings.EqualFold(strings.TrimSpace(l), name) {
			return true
		}
	}
	return false
}

// NodeCredentials holds the API-token credentials for one PVE or PBS node.
type NodeCredentials struct {
	Node       string
	Host       string
	User       string
	TokenName  string
	TokenValue string
}

// Complete reports whether every required credential field is set.
func (n NodeCredentials) Complete() bool {
	return n.Host != "" && n.User != "" && n.TokenName != "" && n.TokenValue != ""
}

// PVENode looks up credentials for a PVE node from PVE_<NAME>_HOST-style
// environment variables. Dashes in the node name map to underscores.
func (c *Config) PVENode(name string) NodeCredentials {
	return nodeCredentials("PVE", name)
}

// PBSNode looks up credentials for a PBS node, mirroring PVENode.
func (c *Config) PBSNode(name string) NodeCredentials {
	return nodeCredentials("PBS", name)
}

func nodeCredentials(kind, name string) NodeCredentials {
	prefix := kind + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return NodeCredentials{
		Node:       name,
		Host:       os.Getenv(prefix + "_HOST"),
		User:       os.Getenv(prefix + "_USER"),
		TokenName:  os.Getenv(prefix + "_TOKEN_NAME"),
		TokenValue: os.Getenv(prefix + "_TOKEN_VALUE"),
	}
}
