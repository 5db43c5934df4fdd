// Package nexus is the nexusd gateway: the conversation store REST API and
// the per-conversation event relay that agent backends publish to.
package nexus

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fintellect/nexus/internal/nexus/config"
	"github.com/fintellect/nexus/internal/nexus/options"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/spf13/cobra"
)

// NewCommand creates the nexusd root command.
func NewCommand() *cobra.Command {
	opts := options.NewOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:   "nexusd",
		Short: "nexusd serves conversations and relays agent event streams",
		Long: heredoc.Doc(`
			nexusd stores conversations, messages and tool-call records, and relays
			the events an agent backend publishes for a conversation to every client
			streaming it.

			Options are read from flags, NEXUS_* environment variables and an
			optional YAML or JSON config file. Changes to the log level and auth
			settings in the config file are applied without a restart.`),
		Example: heredoc.Doc(`
			# Serve with a SQLite store
			nexusd --store.type=sqlite --store.sqlite-path=data/nexus.sqlite

			# Serve from a config file and forward turns to an agent backend
			nexusd -c conf/nexusd.yaml --upstream.submit-url=http://127.0.0.1:8700/turns`),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts, cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.LogOptions); err != nil {
				return err
			}
			defer logger.FlushLog()
			logger.Info("[Nexusd] starting with options %s", cfg.Options.String())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML or JSON config file.")
	opts.AddFlags(cmd.Flags())
	return cmd
}

func setupLogger(o *options.LogOptions) error {
	if err := logger.SetLevel(o.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.SetFormat(o.Format)
	return logger.InitLog(o.File)
}
