package listen

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// GotifyStreamListener follows a Gotify server's message stream using a
// client token, so notifications pushed to Gotify from elsewhere are
// re-broadcast through the relay's channels.
type GotifyStreamListener struct {
	serverURL   string
	clientToken string
	interval    time.Duration
	httpClient  *http.Client
	emit        EmitFunc
	logger      *slog.Logger
}

// NewGotifyStreamListener creates a GotifyStreamListener.
func NewGotifyStreamListener(serverURL, clientToken string, interval time.Duration, verifySSL bool, emit EmitFunc, logger *slog.Logger) *GotifyStreamListener {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifySSL} //nolint:gosec // admin opt-in for self-signed homelab certs
	return &GotifyStreamListener{
		serverURL:   strings.TrimRight(serverURL, "/"),
		clientToken: clientToken,
		interval:    interval,
		httpClient:  &http.Client{Transport: transport},
		emit:        emit,
		logger:      logger,
	}
}

// Name returns the source identifier.
func (l *GotifyStreamListener) Name() string { return "gotify" }

// Run maintains the stream connection until ctx is cancelled, reconnecting
// at the fixed interval after transport failures.
func (l *GotifyStreamListener) Run(ctx context.Context, report ReportFunc) error {
	if l.serverURL == "" || l.clientToken == "" {
		return errors.New("gotify stream requires a server URL and client token")
	}

	for {
		err := l.streamOnce(ctx, report)
		if ctx.Err() != nil {
			return nil
		}
		report(StateReconnecting)
		l.logger.Warn("gotify stream disconnected, will reconnect",
			"interval", l.interval, "error", err)
		if waitInterval(ctx, l.interval) != nil {
			return nil
		}
	}
}

// streamURL converts the configured HTTP base URL into the websocket
// stream endpoint.
func (l *GotifyStreamListener) streamURL() string {
	ws := l.serverURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/stream"
}

func (l *GotifyStreamListener) streamOnce(ctx context.Context, report ReportFunc) error {
	header := http.Header{}
	header.Set("X-Gotify-Key", l.clientToken)

	conn, _, err := websocket.Dial(ctx, l.streamURL(), &websocket.DialOptions{
		HTTPClient: l.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("dialing gotify stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	report(StateRunning)
	l.logger.Info("gotify stream connected", "server", l.serverURL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		l.handleMessage(data)
	}
}

// gotifyStreamMessage is the wire shape of one streamed Gotify message.
type gotifyStreamMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	AppID    int    `json:"appid"`
}

func (l *GotifyStreamListener) handleMessage(data []byte) {
	var msg gotifyStreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Warn("unparseable gotify message", "error", err)
		return
	}

	title := msg.Title
	if title == "" {
		title = "Gotify Event"
	}
	body := msg.Message
	if body == "" {
		body = title
	}

	l.emit(title, body, map[string]string{
		"event_type": "gotify",
		"source":     l.serverURL,
		"priority":   fmt.Sprintf("%d", msg.Priority),
		"severity":   severityFromGotifyPriority(msg.Priority),
	})
}

// severityFromGotifyPriority maps Gotify's 0-10 priority scale onto the
// relay's severity taxonomy.
func severityFromGotifyPriority(p int) string {
	switch {
	case p >= 10:
		return "critical"
	case p >= 8:
		return "error"
	case p >= 4:
		return "warning"
	default:
		return "info"
	}
}

// TestConnection probes the Gotify health endpoint with the relay's TLS
// policy.
func (l *GotifyStreamListener) TestConnection(ctx context.Context) error {
	if l.serverURL == "" {
		return errors.New("gotify stream server URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building gotify health request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching gotify server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gotify health returned %d", resp.StatusCode)
	}
	return nil
}
