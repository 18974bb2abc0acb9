package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/proxlab/pvebridge/internal/event"
)

// Discord embed colors per severity.
var discordColors = map[event.Severity]int{
	event.SeverityInfo:     0x00FF00,
	event.SeverityWarning:  0xFFA500,
	event.SeverityError:    0xFF4500,
	event.SeverityCritical: 0xFF0000,
}

// Discord API limits.
const (
	discordTitleLimit = 256
	discordBodyLimit  = 4096
)

// DiscordNotifier delivers events to a Discord channel through a webhook,
// rendering each event as a rich embed.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a DiscordNotifier for the given webhook URL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the channel identifier.
func (n *DiscordNotifier) Name() string { return "discord" }

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Timestamp   string              `json:"timestamp"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// embedFieldAttrs are the well-known attributes surfaced as embed fields,
// in display order.
var embedFieldAttrs = []struct{ key, label string }{
	{"vm_id", "VM ID"},
	{"vm_name", "VM Name"},
	{"node", "Node"},
	{"source", "Source IP"},
	{"event_type", "Event Type"},
}

// Send posts the event to the webhook as an embed.
func (n *DiscordNotifier) Send(ctx context.Context, e event.Event) error {
	embed := discordEmbed{
		Title:       truncate(e.Title, discordTitleLimit),
		Description: truncate(e.Body, discordBodyLimit),
		Color:       discordColors[e.Severity],
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, f := range embedFieldAttrs {
		if v, ok := e.Attr(f.key); ok && v != "" {
			embed.Fields = append(embed.Fields, discordEmbedField{Name: f.label, Value: v, Inline: true})
		}
	}
	if host, ok := e.Attr("hostname"); ok && host != "" {
		embed.Footer = &struct {
			Text string `json:"text"`
		}{Text: "Host: " + host}
	}

	return n.post(ctx, discordPayload{Username: "pvebridge", Embeds: []discordEmbed{embed}})
}

// TestConnection posts a minimal test message to the webhook.
func (n *DiscordNotifier) TestConnection(ctx context.Context) error {
	return n.post(ctx, discordPayload{
		Username: "pvebridge",
		Embeds: []discordEmbed{{
			Title:       "Connection Test",
			Description: "pvebridge Discord channel test message.",
			Color:       discordColors[event.SeverityInfo],
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func (n *DiscordNotifier) post(ctx context.Context, payload discordPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
