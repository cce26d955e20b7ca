package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/devserver"
)

var (
	serveDevPort    int
	serveDevRecords int
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run an in-memory moderation backend for development",
	Long: `Run an HTTP backend with generated records for trying the console
without a real moderation service. Data lives in memory and is regenerated
from [dev_server] seed on every start.

The server binds to 127.0.0.1 by default. Binding elsewhere requires
[dev_server] api_key. Use Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dc := cfg.DevServer
		if cmd.Flags().Changed("port") {
			dc.Port = serveDevPort
		}
		if cmd.Flags().Changed("records") {
			dc.Records = serveDevRecords
		}

		store := devserver.NewStore(dc.Records, dc.Seed, clock.Real{})
		srv := devserver.NewServer(dc, store, logger)
		logger.Info("point the console at the dev server", "url", dc.BaseURL())
		return srv.Run(cmd.Context())
	},
}

func init() {
	serveDevCmd.Flags().IntVar(&serveDevPort, "port", 0, "listen port (overrides config)")
	serveDevCmd.Flags().IntVar(&serveDevRecords, "records", 0, "number of generated records (overrides config)")
	rootCmd.AddCommand(serveDevCmd)
}
