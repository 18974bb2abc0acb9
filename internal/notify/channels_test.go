package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxlab/pvebridge/internal/event"
	"github.com/proxlab/pvebridge/internal/notify"
)

func TestDiscordNotifier_SendsEmbed(t *testing.T) {
	var payload struct {
		Username string `json:"username"`
		Embeds   []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       int    `json:"color"`
			Fields      []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := notify.NewDiscordNotifier(srv.URL)
	e := event.New("Node Fenced", "Node pve2 has been fenced", map[string]string{
		"node":     "pve2",
		"severity": "critical",
	})

	require.NoError(t, n.Send(context.Background(), e))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "Node Fenced", payload.Embeds[0].Title)
	assert.Equal(t, 0xFF0000, payload.Embeds[0].Color)

	found := false
	for _, f := range payload.Embeds[0].Fields {
		if f.Name == "Node" && f.Value == "pve2" {
			found = true
		}
	}
	assert.True(t, found, "expected a Node embed field")
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := notify.NewDiscordNotifier(srv.URL)
	err := n.Send(context.Background(), event.New("Test", "hello", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGotifyNotifier_SendsPriorityAndToken(t *testing.T) {
	var (
		gotToken string
		msg      struct {
			Title    string `json:"title"`
			Message  string `json:"message"`
			Priority int    `json:"priority"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message", r.URL.Path)
		gotToken = r.Header.Get("X-Gotify-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notify.NewGotifyNotifier(srv.URL, "app-token", true)
	e := event.New("Backup Completed", "Backup of VM 101 completed", map[string]string{
		"severity": "error",
	})

	require.NoError(t, n.Send(context.Background(), e))
	assert.Equal(t, "app-token", gotToken)
	assert.Equal(t, "Backup Completed", msg.Title)
	assert.Equal(t, 8, msg.Priority)
}

func TestGotifyNotifier_TestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := notify.NewGotifyNotifier(srv.URL, "tok", true)
	assert.NoError(t, n.TestConnection(context.Background()))

	down := notify.NewGotifyNotifier("http://127.0.0.1:1", "tok", true)
	assert.Error(t, down.TestConnection(context.Background()))
}

func TestNotifiersImplementConnectionTester(t *testing.T) {
	var _ notify.ConnectionTester = notify.NewDiscordNotifier("http://example.invalid")
	var _ notify.ConnectionTester = notify.NewGotifyNotifier("http://example.invalid", "t", true)
}
