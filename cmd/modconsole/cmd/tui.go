package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/config"
	"github.com/wesm/modconsole/internal/session"
	"github.com/wesm/modconsole/internal/tui"
)

var (
	tuiAddress string
	tuiFresh   bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive moderation console",
	Long: `Open the interactive terminal console for reviewing listings.

The console reopens at the address and theme of the previous session unless
--address or --fresh is given.

Navigation:
  ↑/k, ↓/j    Move up/down
  n/p         Next/previous page
  b/f         Back/forward through filter history
  Enter       Open record
  ←/→         Previous/next record (detail view)
  Esc         Back to the list

Filters:
  /           Search titles
  1 2 3       Toggle pending/approved/rejected
  u           Toggle urgent only
  c, o        Cycle category, cycle sort
  m/M         Edit min/max price
  x           Clear all filters

Decisions:
  a           Approve (detail view)
  d           Reject or request changes (detail view)
  Space       Toggle selection
  A, D        Bulk approve, bulk reject
  e           Export selection to CSV
  t           Toggle light/dark theme
  q           Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		statePath := cfg.StatePath()
		state, err := config.LoadState(statePath)
		if err != nil {
			logger.Warn("ignoring unreadable state file", "path", statePath, "error", err)
			state = &config.State{}
		}

		address := state.LastAddress
		if tuiFresh {
			address = ""
		}
		if cmd.Flags().Changed("address") {
			address = tuiAddress
		}

		sess := session.New(client, session.Options{
			Address:  address,
			Debounce: cfg.Console.Debounce,
			Cache: cache.Options{
				TTL:           cfg.Console.CacheTTL,
				StaleFallback: cfg.Console.StaleFallback,
			},
			Theme:  session.Theme(state.Theme),
			Logger: logger,
		})
		defer sess.Close()

		model := tui.New(sess, tui.Options{
			Version:   Version,
			ExportDir: cfg.HomeDir,
			Logger:    logger,
			OnThemeChange: func(theme session.Theme) {
				state.Theme = string(theme)
			},
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run console: %w", err)
		}

		state.Theme = string(sess.Theme())
		state.LastAddress = sess.Address()
		if err := state.Save(statePath); err != nil {
			logger.Warn("failed to save console state", "path", statePath, "error", err)
		}
		return nil
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiAddress, "address", "", "initial filter address, e.g. 'status[]=pending&sortBy=price'")
	tuiCmd.Flags().BoolVar(&tuiFresh, "fresh", false, "ignore the address saved from the previous session")
	rootCmd.AddCommand(tuiCmd)
}
