package cmd

import (
	"log/slog"

	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/listen"
	"github.com/proxlab/pvebridge/internal/notify"
	"github.com/proxlab/pvebridge/internal/proxmox"
	"github.com/proxlab/pvebridge/internal/server"
)

// buildRegistrations constructs the output channel set from configuration.
// A channel that is enabled but missing required settings is skipped with a
// warning rather than failing startup, so one misconfigured channel does not
// take the relay down.
func buildRegistrations(cfg *config.Config, routing *config.Routing, logger *slog.Logger) []notify.Registration {
	var out []notify.Registration

	add := func(n notify.Notifier) {
		out = append(out, notify.Registration{
			Notifier:    n,
			MinSeverity: routing.MinimumFor(n.Name()),
		})
	}

	if cfg.DiscordOutEnabled {
		if cfg.DiscordOutWebhookURL == "" {
			logger.Warn("discord output enabled but DISCORD_OUT_WEBHOOK_URL is not set, skipping channel")
		} else {
			add(notify.NewDiscordNotifier(cfg.DiscordOutWebhookURL))
		}
	}

	if cfg.GotifyOutEnabled {
		if cfg.GotifyOutServerURL == "" || cfg.GotifyOutAppToken == "" {
			logger.Warn("gotify output enabled but GOTIFY_OUT_SERVER_URL or GOTIFY_OUT_APP_TOKEN is not set, skipping channel")
		} else {
			add(notify.NewGotifyNotifier(cfg.GotifyOutServerURL, cfg.GotifyOutAppToken, cfg.VerifySSL))
		}
	}

	if cfg.NotifyEmailEnabled {
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" || cfg.SMTPTo == "" {
			logger.Warn("email output enabled but SMTP_HOST, SMTP_FROM or SMTP_TO is not set, skipping channel")
		} else {
			add(notify.NewSMTPNotifier(notify.SMTPConfig{
				Host:       cfg.SMTPHost,
				Port:       cfg.SMTPPort,
				Username:   cfg.SMTPUsername,
				Password:   cfg.SMTPPassword,
				FromAddr:   cfg.SMTPFrom,
				ToAddrs:    cfg.SMTPTo,
				Encryption: cfg.SMTPEncryption,
			}))
		}
	}

	return out
}

// buildListeners constructs the input listener set gated by
// ENABLED_EVENT_LISTENERS and registers each with the supervisor. Listeners
// that receive events over HTTP (Discord) return a route to mount on the
// relay's server.
func buildListeners(cfg *config.Config, sup *listen.Supervisor, pve *proxmox.Client, logger *slog.Logger) []server.Route {
	emit := sup.OnEvent
	var routes []server.Route

	if cfg.ListenerEnabled(config.ListenerSyslog) {
		sup.Register(listen.NewSyslogListener(cfg.SyslogListenAddr, emit, logger))
	}

	if cfg.ListenerEnabled(config.ListenerTasks) {
		var nodes []config.NodeCredentials
		for _, name := range cfg.PVENodes {
			creds := cfg.PVENode(name)
			if !creds.Complete() {
				logger.Warn("task listener skipping node with incomplete credentials", "node", name)
				continue
			}
			nodes = append(nodes, creds)
		}
		sup.Register(listen.NewTaskStreamListener(nodes, cfg.TaskReconnectInterval, pve.HTTPClient(), emit, logger))
	}

	if cfg.ListenerEnabled(config.ListenerGotify) {
		sup.Register(listen.NewGotifyStreamListener(
			cfg.GotifyInServerURL, cfg.GotifyInClientToken,
			cfg.GotifyInReconnectInterval, cfg.VerifySSL, emit, logger))
	}

	if cfg.ListenerEnabled(config.ListenerEmail) {
		sup.Register(listen.NewMailboxListener(
			cfg.EmailHost, cfg.EmailUsername, cfg.EmailPassword,
			cfg.EmailMailbox, cfg.EmailPollInterval, emit, logger))
	}

	if cfg.ListenerEnabled(config.ListenerDiscord) {
		dl := listen.NewDiscordInListener(cfg.DiscordInWebhookURL, emit, logger)
		sup.Register(dl)
		routes = append(routes, server.Route{Pattern: cfg.DiscordInListenPath, Handler: dl.Handler()})
	}

	return routes
}

// buildTesters collects every component that supports a connection probe,
// keyed by name, for the test_connections tool.
func buildTesters(registrations []notify.Registration, sup *listen.Supervisor) map[string]notify.ConnectionTester {
	testers := make(map[string]notify.ConnectionTester)
	for _, reg := range registrations {
		if tester, ok := reg.Notifier.(notify.ConnectionTester); ok {
			testers[reg.Notifier.Name()] = tester
		}
	}
	for _, l := range sup.Listeners() {
		if tester, ok := l.(notify.ConnectionTester); ok {
			testers["listener/"+l.Name()] = tester
		}
	}
	return testers
}
