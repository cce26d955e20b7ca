package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/config"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/remote"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modconsole",
	Short: "Moderation console for classified listings",
	Long: `modconsole is a terminal console for reviewing classified listings.

It browses the moderation queue with filters, shows full record details,
and applies approve, reject and request-changes decisions one at a time or
in bulk. The backend is configured under [remote] in config.toml; run
'modconsole serve-dev' for a local in-memory backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create home directory %s: %w", cfg.HomeDir, err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newClient builds the backend client from the [remote] section.
func newClient() (*remote.Client, error) {
	c, err := remote.New(remote.Config{
		URL:               cfg.Remote.URL,
		APIKey:            cfg.Remote.APIKey,
		AllowInsecure:     cfg.Remote.AllowInsecure,
		Timeout:           cfg.Remote.Timeout,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("configure backend: %w", err)
	}
	return c.WithLogger(logger), nil
}

// describeError adds a hint for the failure kinds a reviewer can act on.
func describeError(err error) error {
	switch {
	case remote.IsTimeout(err):
		return fmt.Errorf("%w\n\nThe backend at %s did not answer in time (timeout %s)",
			err, cfg.Remote.URL, cfg.Remote.Timeout)
	case errors.Is(err, listing.ErrNotFound):
		return err
	case errors.Is(err, listing.ErrTransport):
		return fmt.Errorf("%w\n\nIs the backend running at %s? Start one with 'modconsole serve-dev'",
			err, cfg.Remote.URL)
	default:
		return err
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.modconsole/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
