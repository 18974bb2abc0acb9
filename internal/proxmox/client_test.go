package proxmox

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxlab/pvebridge/internal/config"
)

func TestAuthHeader(t *testing.T) {
	header := AuthHeader(config.NodeCredentials{
		User:       "monitor@pam",
		TokenName:  "relay",
		TokenValue: "aaaa-bbbb",
	})
	assert.Equal(t, "PVEAPIToken=monitor@pam!relay=aaaa-bbbb", header)
}

func TestPingDecodesVersionEnvelope(t *testing.T) {
	var gotAuth string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api2/json/version", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"version":"8.2.4","release":"8.2"}}`))
	}))
	defer srv.Close()

	host, port := splitTestServer(t, srv)
	creds := config.NodeCredentials{
		Node:       "pve1",
		Host:       host,
		User:       "monitor@pam",
		TokenName:  "relay",
		TokenValue: "secret",
	}

	version, err := NewClient(false).Ping(context.Background(), creds, port)
	require.NoError(t, err)
	assert.Equal(t, "8.2.4", version)
	assert.Equal(t, "PVEAPIToken=monitor@pam!relay=secret", gotAuth)
}

func TestPingReportsHTTPError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "authentication failure", http.StatusUnauthorized)
	}))
	defer srv.Close()

	host, port := splitTestServer(t, srv)
	creds := config.NodeCredentials{
		Node: "pve1", Host: host, User: "u@pam", TokenName: "t", TokenValue: "v",
	}

	_, err := NewClient(false).Ping(context.Background(), creds, port)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "pve1")
}

func TestPingRejectsIncompleteCredentials(t *testing.T) {
	_, err := NewClient(false).Ping(context.Background(), config.NodeCredentials{Node: "pve1"}, PVEPort)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete credentials")
}

func splitTestServer(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
