package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/event"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PVEBRIDGE_DATA_DIR", t.TempDir())

	c, err := config.Load()
	require.NoError(t, err)

	assert.False(t, c.VerifySSL)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 8790, c.Port)
	assert.Equal(t, ":5514", c.SyslogListenAddr)
	assert.Equal(t, 30*time.Second, c.TaskReconnectInterval)
	assert.Equal(t, 60*time.Second, c.EmailPollInterval)
	assert.Equal(t, "INBOX", c.EmailMailbox)
	assert.Equal(t, filepath.Join(c.DataDir, "routing.yaml"), c.RoutingFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PVEBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("VERIFY_SSL", "true")
	t.Setenv("PVE_NODES", "pve-main,pve-backup")
	t.Setenv("ENABLED_EVENT_LISTENERS", "SYSLOG,TASKS")
	t.Setenv("EVENT_WS_RECONNECT_INTERVAL", "5s")

	c, err := config.Load()
	require.NoError(t, err)

	assert.True(t, c.VerifySSL)
	assert.Equal(t, []string{"pve-main", "pve-backup"}, c.PVENodes)
	assert.Equal(t, 5*time.Second, c.TaskReconnectInterval)
	assert.True(t, c.ListenerEnabled(config.ListenerSyslog))
	assert.True(t, c.ListenerEnabled(config.ListenerTasks))
	assert.False(t, c.ListenerEnabled(config.ListenerGotify))
}

func TestListenerEnabled_CaseInsensitive(t *testing.T) {
	t.Setenv("PVEBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("ENABLED_EVENT_LISTENERS", "syslog, Email")

	c, err := config.Load()
	require.NoError(t, err)

	assert.True(t, c.ListenerEnabled(config.ListenerSyslog))
	assert.True(t, c.ListenerEnabled(config.ListenerEmail))
}

func TestPVENode_Credentials(t *testing.T) {
	t.Setenv("PVE_PVE_MAIN_HOST", "10.0.0.10")
	t.Setenv("PVE_PVE_MAIN_USER", "root@pam")
	t.Setenv("PVE_PVE_MAIN_TOKEN_NAME", "bridge")
	t.Setenv("PVE_PVE_MAIN_TOKEN_VALUE", "secret")

	var c config.Config
	creds := c.PVENode("pve-main")

	assert.Equal(t, "10.0.0.10", creds.Host)
	assert.Equal(t, "root@pam", creds.User)
	assert.True(t, creds.Complete())

	missing := c.PVENode("other")
	assert.False(t, missing.Complete())
}

func TestLoadRouting_MissingFileIsEmpty(t *testing.T) {
	r, err := config.LoadRouting(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, event.SeverityInfo, r.MinimumFor("discord"))
}

func TestLoadRouting_Thresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	content := "min_severity:\n  discord: warning\n  smtp: critical\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := config.LoadRouting(path)
	require.NoError(t, err)

	assert.Equal(t, event.SeverityWarning, r.MinimumFor("discord"))
	assert.Equal(t, event.SeverityCritical, r.MinimumFor("smtp"))
	assert.Equal(t, event.SeverityInfo, r.MinimumFor("gotify"))
}

func TestLoadRouting_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, err := config.LoadRouting(path)
	assert.Error(t, err)
}
