package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/export"
	"github.com/wesm/modconsole/internal/filter"
)

var (
	exportOutput  string
	exportAddress string
)

var exportCmd = &cobra.Command{
	Use:   "export [id]...",
	Short: "Export records to CSV",
	Long: `Export records to a CSV file with the columns
id,title,price,category,status,priority,createdAt.

Records are written in the order given. With --address instead of ids, every
record on that listing page is exported. Use --output - to write to stdout.

Examples:
  modconsole export 42 43 44
  modconsole export --address 'status[]=pending&priority[]=urgent' -o urgent.csv
  modconsole export 42 -o -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && cmd.Flags().Changed("address") {
			return errors.New("give record ids or --address, not both")
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		c := cache.New(client, cache.Options{TTL: cfg.Console.CacheTTL}).WithLogger(logger)

		var ids []int64
		if len(args) > 0 {
			if ids, err = parseIDs(args); err != nil {
				return err
			}
		} else {
			page, err := c.Listing(cmd.Context(), filter.Decode(exportAddress))
			if err != nil {
				return describeError(fmt.Errorf("list records: %w", err))
			}
			for _, r := range page.Records {
				ids = append(ids, r.ID)
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No records match the address; nothing exported.")
				return nil
			}
		}

		exporter := export.NewExporter(c).WithLogger(logger)

		if exportOutput == "-" {
			stats, err := exporter.Write(cmd.Context(), cmd.OutOrStdout(), ids)
			if err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			for _, e := range stats.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", e)
			}
			return nil
		}

		filename := exportOutput
		if filename == "" {
			filename = fmt.Sprintf("moderation-%s.csv", time.Now().Format("20060102-150405"))
		}
		stats := exporter.WriteFile(cmd.Context(), filename, ids)
		fmt.Fprintln(cmd.OutOrStdout(), export.FormatExportResult(stats))
		if stats.Count == 0 {
			return errors.New("export failed")
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: moderation-<timestamp>.csv, - for stdout)")
	exportCmd.Flags().StringVar(&exportAddress, "address", "", "export the listing page at this filter address")
	rootCmd.AddCommand(exportCmd)
}
