package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/listing"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show full record details",
	Long: `Show the complete details of a record: description, characteristics,
seller and moderation history. Use --json for programmatic output.

Examples:
  modconsole show 42
  modconsole show 42 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid record id %q", args[0])
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		rec, err := client.GetRecord(cmd.Context(), id)
		if err != nil {
			return describeError(fmt.Errorf("get record: %w", err))
		}

		if showJSON {
			return outputRecordJSON(cmd.OutOrStdout(), rec)
		}
		outputRecordText(cmd.OutOrStdout(), rec)
		return nil
	},
}

func outputRecordText(out io.Writer, rec *listing.RecordDetail) {
	rule := strings.Repeat("─", 72)

	fmt.Fprintln(out, strings.Repeat("═", 72))
	fmt.Fprintf(out, "%s\n", rec.Title)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "ID:        %d\n", rec.ID)
	fmt.Fprintf(out, "Price:     %s\n", formatPrice(rec.Price))
	fmt.Fprintf(out, "Category:  %s\n", rec.Category)
	fmt.Fprintf(out, "Status:    %s\n", rec.Status)
	fmt.Fprintf(out, "Priority:  %s\n", rec.Priority)
	fmt.Fprintf(out, "Created:   %s\n", rec.CreatedAt.Local().Format(time.RFC1123))
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "Updated:   %s\n", rec.UpdatedAt.Local().Format(time.RFC1123))
	}
	if len(rec.Images) > 0 {
		fmt.Fprintf(out, "Images:    %d\n", len(rec.Images))
	}

	fmt.Fprintln(out, rule)
	if rec.Description != "" {
		fmt.Fprintln(out, rec.Description)
	} else {
		fmt.Fprintln(out, "(No description)")
	}

	if len(rec.Characteristics) > 0 {
		fmt.Fprintln(out, rule)
		fmt.Fprintln(out, "Characteristics:")
		width := 0
		for _, c := range rec.Characteristics {
			width = max(width, len([]rune(c.Label)))
		}
		for _, c := range rec.Characteristics {
			fmt.Fprintf(out, "  %-*s  %s\n", width, c.Label, c.Value)
		}
	}

	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Seller:    %s (rating %s, %d listings)\n",
		rec.Seller.Name, rec.Seller.Rating, rec.Seller.TotalListings)

	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Moderation history:")
	if len(rec.ModerationHistory) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, h := range rec.ModerationHistory {
		line := fmt.Sprintf("  %s  %s: %s", h.Timestamp.Local().Format("2006-01-02 15:04"), h.ModeratorName, h.Action)
		if h.Reason != "" {
			line += " (" + h.Reason + ")"
		}
		fmt.Fprintln(out, line)
		if h.Comment != "" {
			fmt.Fprintln(out, indent(h.Comment, "      "))
		}
	}
}

func outputRecordJSON(out io.Writer, rec *listing.RecordDetail) error {
	output := summaryJSON(rec.RecordSummary)
	output["description"] = rec.Description
	output["images"] = rec.Images
	output["characteristics"] = rec.Characteristics
	output["seller"] = rec.Seller
	output["moderation_history"] = rec.ModerationHistory
	if !rec.UpdatedAt.IsZero() {
		output["updated_at"] = rec.UpdatedAt.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(showCmd)
}
