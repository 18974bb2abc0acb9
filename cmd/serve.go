package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/proxlab/pvebridge/internal/build"
	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/listen"
	"github.com/proxlab/pvebridge/internal/logger"
	"github.com/proxlab/pvebridge/internal/notify"
	"github.com/proxlab/pvebridge/internal/proxmox"
	"github.com/proxlab/pvebridge/internal/server"
	"github.com/proxlab/pvebridge/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event relay and MCP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.LogDir(), cfg.SlogLevel())
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		log.Info("starting pvebridge", "version", build.Version, "port", cfg.Port)

		routing, err := config.LoadRouting(cfg.RoutingFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registrations := buildRegistrations(cfg, routing, log)
		if len(registrations) == 0 {
			log.Warn("no output channels configured, events will be logged and dropped")
		}
		dispatcher := notify.NewDispatcher(log, registrations)

		pve := proxmox.NewClient(cfg.VerifySSL)

		supervisor := listen.NewSupervisor(log)
		routes := buildListeners(cfg, supervisor, pve, log)
		supervisor.SetDispatcher(dispatcher)
		supervisor.StartAll(ctx)

		mcpServer := tools.NewServer(tools.Deps{
			Config:     cfg,
			Dispatcher: dispatcher,
			Supervisor: supervisor,
			Proxmox:    pve,
			Testers:    buildTesters(registrations, supervisor),
			Logger:     log,
		})

		err = server.New(mcpServer, cfg.Port, log, routes...).Run(ctx)

		supervisor.StopAll()
		log.Info("pvebridge stopped")
		return err
	},
}
