package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proxlab/pvebridge/internal/config"
	"github.com/proxlab/pvebridge/internal/event"
	"github.com/proxlab/pvebridge/internal/logger"
	"github.com/proxlab/pvebridge/internal/notify"
)

var (
	notifyTitle    string
	notifyBody     string
	notifySeverity string
)

// notifyCmd sends a one-shot notification through the configured channels.
// Useful for smoke-testing channel configuration without running the relay.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a one-shot notification to the configured channels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.LogDir(), cfg.SlogLevel())
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		routing, err := config.LoadRouting(cfg.RoutingFile)
		if err != nil {
			return err
		}

		registrations := buildRegistrations(cfg, routing, log)
		if len(registrations) == 0 {
			return errors.New("no output channels configured")
		}

		e := event.New(notifyTitle, notifyBody, map[string]string{
			event.AttrSeverity: notifySeverity,
			"source":           "cli",
		})
		if err := e.Validate(); err != nil {
			return err
		}

		result := notify.NewDispatcher(log, registrations).Dispatch(cmd.Context(), e)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))

		if failed := result.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d channels failed", failed, result.Total)
		}
		return nil
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTitle, "title", "", "notification title (required)")
	notifyCmd.Flags().StringVar(&notifyBody, "body", "", "notification body (required)")
	notifyCmd.Flags().StringVar(&notifySeverity, "severity", "info", "severity: info, warning, error or critical")
	_ = notifyCmd.MarkFlagRequired("title")
	_ = notifyCmd.MarkFlagRequired("body")
}
