package listen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// infraKeywords filter inbound chat messages down to the ones worth
// relaying as events.
var infraKeywords = []string{
	"proxmox", "pve", "pbs", "vm", "virtual machine",
	"backup", "cluster", "node", "migration", "storage",
}

// DiscordInListener ingests Discord messages posted to an HTTP endpoint the
// relay serves. Discord offers no pollable inbox, so a bot or automation
// forwards channel messages to the relay instead; only
// infrastructure-related messages become events. The configured outbound
// webhook URL is used solely for connection testing.
type DiscordInListener struct {
	webhookURL string
	emit       EmitFunc
	logger     *slog.Logger
	client     *http.Client
	running    atomic.Bool
}

// NewDiscordInListener creates a DiscordInListener.
func NewDiscordInListener(webhookURL string, emit EmitFunc, logger *slog.Logger) *DiscordInListener {
	return &DiscordInListener{
		webhookURL: webhookURL,
		emit:       emit,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the source identifier.
func (l *DiscordInListener) Name() string { return "discord" }

// Run marks the endpoint live until ctx is cancelled. The HTTP server owns
// the socket, so there is no connection to maintain or reconnect.
func (l *DiscordInListener) Run(ctx context.Context, report ReportFunc) error {
	l.running.Store(true)
	report(StateRunning)
	l.logger.Info("discord message endpoint live")

	<-ctx.Done()
	l.running.Store(false)
	return nil
}

// discordInMessage is the wire shape of one forwarded Discord message.
type discordInMessage struct {
	Content string `json:"content"`
	Author  struct {
		Username string `json:"username"`
	} `json:"author"`
}

// Handler returns the HTTP handler that receives forwarded messages.
func (l *DiscordInListener) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !l.running.Load() {
			http.Error(w, "listener not running", http.StatusServiceUnavailable)
			return
		}

		var msg discordInMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		l.handleMessage(msg)
		w.WriteHeader(http.StatusAccepted)
	})
}

func (l *DiscordInListener) handleMessage(msg discordInMessage) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	user := msg.Author.Username
	if user == "" {
		user = "Unknown"
	}

	lower := strings.ToLower(content)
	relevant := false
	for _, kw := range infraKeywords {
		if strings.Contains(lower, kw) {
			relevant = true
			break
		}
	}
	if !relevant {
		l.logger.Debug("ignoring discord message without infrastructure keywords", "user", user)
		return
	}

	l.emit("Discord Message from "+user, content, map[string]string{
		"event_type": "discord",
		"user":       user,
		"severity":   "info",
	})
}

// TestConnection posts a test message to the configured outbound webhook.
func (l *DiscordInListener) TestConnection(ctx context.Context) error {
	if l.webhookURL == "" {
		return errors.New("discord input webhook URL not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"username": "pvebridge",
		"content":  "Discord listener connection test.",
	})
	if err != nil {
		return fmt.Errorf("encoding discord test payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building discord test request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}
	return nil
}
