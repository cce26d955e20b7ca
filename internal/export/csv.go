// Package export writes selected records to CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/modconsole/internal/listing"
)

// DefaultConcurrency bounds parallel detail reads.
const DefaultConcurrency = 4

// Header is the CSV column order.
var Header = []string{"id", "title", "price", "category", "status", "priority", "createdAt"}

// Reader loads a record's detail. The listing cache and the backend client
// both qualify.
type Reader interface {
	Record(ctx context.Context, id int64) (*listing.RecordDetail, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, id int64) (*listing.RecordDetail, error)

// Record calls f.
func (f ReaderFunc) Record(ctx context.Context, id int64) (*listing.RecordDetail, error) {
	return f(ctx, id)
}

// ExportStats contains structured results of a CSV export.
type ExportStats struct {
	Count      int
	Errors     []string
	Path       string
	WriteError bool // true if a write error occurred and the file was removed
}

// Exporter fetches record details and writes them as CSV rows.
type Exporter struct {
	reader      Reader
	concurrency int
	logger      *slog.Logger
}

// NewExporter creates an exporter reading through r.
func NewExporter(r Reader) *Exporter {
	return &Exporter{
		reader:      r,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
}

// WithConcurrency sets how many details are fetched at once.
func (e *Exporter) WithConcurrency(n int) *Exporter {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// WithLogger sets the logger.
func (e *Exporter) WithLogger(logger *slog.Logger) *Exporter {
	e.logger = logger
	return e
}

// fetch loads every id, keeping input order. A failed read leaves a nil slot
// and an error message; only context cancellation aborts the batch.
func (e *Exporter) fetch(ctx context.Context, ids []int64) ([]*listing.RecordDetail, []string, error) {
	results := make([]*listing.RecordDetail, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := e.reader.Record(gctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("failed to fetch record for export", "id", id, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var messages []string
	for i, err := range errs {
		if err != nil {
			messages = append(messages, fmt.Sprintf("%d: %v", ids[i], err))
		}
	}
	return results, messages, nil
}

// Write fetches ids and writes one row per readable record to w in the
// order given, after the header.
func (e *Exporter) Write(ctx context.Context, w io.Writer, ids []int64) (ExportStats, error) {
	records, messages, err := e.fetch(ctx, ids)
	if err != nil {
		return ExportStats{}, err
	}

	stats := ExportStats{Errors: messages}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return stats, err
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		if err := cw.Write(Row(r.RecordSummary)); err != nil {
			return stats, err
		}
		stats.Count++
	}
	cw.Flush()
	return stats, cw.Error()
}

// WriteFile exports ids to filename. The file is removed when nothing was
// exported or writing failed.
func (e *Exporter) WriteFile(ctx context.Context, filename string, ids []int64) ExportStats {
	f, err := createNoFollow(filename)
	if err != nil {
		return ExportStats{Errors: []string{fmt.Sprintf("failed to create export file: %v", err)}}
	}

	stats, err := e.Write(ctx, f, ids)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("write error: %v", err))
		stats.WriteError = true
	}
	if err := f.Close(); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file close error: %v", err))
		stats.WriteError = true
	}

	if stats.Count == 0 || stats.WriteError {
		os.Remove(filename)
		return stats
	}

	if abs, err := filepath.Abs(filename); err == nil {
		stats.Path = abs
	} else {
		stats.Path = filename
	}
	return stats
}

// Row formats a record as CSV fields in Header order.
func Row(r listing.RecordSummary) []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Title,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		r.Category,
		string(r.Status),
		string(r.Priority),
		created,
	}
}

// FormatExportResult formats ExportStats into a human-readable string for display.
func FormatExportResult(stats ExportStats) string {
	if stats.WriteError {
		msg := "Export failed due to write errors. File removed."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	if stats.Count == 0 {
		msg := "No records exported."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	result := fmt.Sprintf("Exported %d record(s)\n\nSaved to:\n%s", stats.Count, stats.Path)
	if len(stats.Errors) > 0 {
		result += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
	}
	return result
}
