package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/listing"
)

var (
	statsPeriod string
	statsJSON   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show moderation statistics",
	Long: `Show the moderation report of the backend: review counts and the share
of each decision for a period (today, week or month).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period := listing.StatsPeriod(statsPeriod)
		switch period {
		case listing.PeriodToday, listing.PeriodWeek, listing.PeriodMonth:
		default:
			return fmt.Errorf("invalid period %q (today, week or month)", statsPeriod)
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		stats, err := client.StatsSummary(cmd.Context(), period)
		if err != nil {
			return describeError(fmt.Errorf("get stats: %w", err))
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Fprintf(out, "Backend: %s (period: %s)\n", cfg.Remote.URL, period)
		fmt.Fprintf(out, "  Reviewed:         %d\n", stats.TotalReviewed)
		fmt.Fprintf(out, "    today:          %d\n", stats.TotalReviewedToday)
		fmt.Fprintf(out, "    this week:      %d\n", stats.TotalReviewedThisWeek)
		fmt.Fprintf(out, "    this month:     %d\n", stats.TotalReviewedThisMonth)
		fmt.Fprintf(out, "  Approved:         %.1f%%\n", stats.ApprovedPercentage)
		fmt.Fprintf(out, "  Rejected:         %.1f%%\n", stats.RejectedPercentage)
		fmt.Fprintf(out, "  Changes asked:    %.1f%%\n", stats.RequestChangesPercentage)
		fmt.Fprintf(out, "  Avg review time:  %s\n", formatReviewTime(stats.AverageReviewTime))
		return nil
	},
}

// formatReviewTime renders a duration in seconds.
func formatReviewTime(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsPeriod, "period", string(listing.PeriodWeek), "reporting period: today, week or month")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}
