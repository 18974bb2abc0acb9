package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/proxlab/pvebridge/internal/event"
)

// Gotify push priorities per severity. Gotify treats >= 8 as high priority.
var gotifyPriorities = map[event.Severity]int{
	event.SeverityInfo:     4,
	event.SeverityWarning:  6,
	event.SeverityError:    8,
	event.SeverityCritical: 10,
}

// GotifyNotifier delivers events as push messages to a Gotify server using
// an application token.
type GotifyNotifier struct {
	serverURL string
	appToken  string
	client    *http.Client
}

// NewGotifyNotifier creates a GotifyNotifier. verifySSL controls TLS
// certificate verification, since self-hosted Gotify instances often run on
// self-signed certificates.
func NewGotifyNotifier(serverURL, appToken string, verifySSL bool) *GotifyNotifier {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifySSL} //nolint:gosec // admin opt-in for self-signed homelab certs
	return &GotifyNotifier{
		serverURL: strings.TrimRight(serverURL, "/"),
		appToken:  appToken,
		client:    &http.Client{Timeout: 15 * time.Second, Transport: transport},
	}
}

// Name returns the channel identifier.
func (n *GotifyNotifier) Name() string { return "gotify" }

type gotifyMessage struct {
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority int            `json:"priority"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// Send pushes the event to the Gotify /message endpoint.
func (n *GotifyNotifier) Send(ctx context.Context, e event.Event) error {
	msg := gotifyMessage{
		Title:    e.Title,
		Message:  e.Body,
		Priority: gotifyPriorities[e.Severity],
	}
	if len(e.Attributes) > 0 {
		msg.Extras = map[string]any{"pvebridge::attributes": e.Attributes}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding gotify message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serverURL+"/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building gotify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", n.appToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushing to gotify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gotify returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// TestConnection probes the Gotify server's health endpoint.
func (n *GotifyNotifier) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building gotify health request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("reaching gotify server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gotify health returned %d", resp.StatusCode)
	}
	return nil
}
