package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	listAddress string
	listPage    int
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of the moderation queue",
	Long: `List one page of records matching a filter address.

The address uses the same query form as the console title bar, so an
address copied from the console reproduces its listing.

Examples:
  modconsole list
  modconsole list --address 'status[]=pending&priority[]=urgent'
  modconsole list --address 'categoryId=2&sortBy=price&sortOrder=desc' --page 3
  modconsole list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		crit := filter.Decode(listAddress)
		if listPage > 0 {
			crit = crit.WithPage(listPage)
		}

		// The cache applies the client-side priority filter.
		c := cache.New(client, cache.Options{TTL: cfg.Console.CacheTTL}).WithLogger(logger)
		page, err := c.Listing(cmd.Context(), crit)
		if err != nil {
			return describeError(fmt.Errorf("list records: %w", err))
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return outputListJSON(out, page)
		}
		if len(page.Records) == 0 {
			fmt.Fprintln(out, "No records match the current filters.")
			return nil
		}
		outputListTable(out, page)
		return nil
	},
}

func outputListTable(out io.Writer, page *listing.Page) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCATEGORY\tSTATUS\tPRIORITY\tCREATED")
	fmt.Fprintln(w, "──\t─────\t─────\t────────\t──────\t────────\t───────")
	for _, r := range page.Records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			runewidth.Truncate(r.Title, 40, "..."),
			formatPrice(r.Price),
			r.Category,
			r.Status,
			r.Priority,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	p := page.Pagination
	fmt.Fprintf(out, "\nPage %d of %d (%d records)\n", p.CurrentPage, max(p.TotalPages, 1), p.TotalItems)
}

func outputListJSON(out io.Writer, page *listing.Page) error {
	records := make([]map[string]any, len(page.Records))
	for i, r := range page.Records {
		records[i] = summaryJSON(r)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"records":    records,
		"pagination": page.Pagination,
	})
}

func summaryJSON(r listing.RecordSummary) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"title":       r.Title,
		"price":       r.Price,
		"category":    r.Category,
		"category_id": r.CategoryID,
		"status":      r.Status,
		"priority":    r.Priority,
		"created_at":  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

var pricePrinter = message.NewPrinter(language.English)

// formatPrice renders a price with digit grouping, e.g. "12,500 ₽".
func formatPrice(p float64) string {
	return pricePrinter.Sprintf("%v ₽", number.Decimal(p, number.MaxFractionDigits(2)))
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	listCmd.Flags().StringVar(&listAddress, "address", "", "filter address in query form")
	listCmd.Flags().IntVar(&listPage, "page", 0, "page number (overrides the address)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}
