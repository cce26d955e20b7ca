package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/selection"
)

// Progress reports bulk progress.
type Progress interface {
	OnStart(total int)
	OnProgress(processed, succeeded, failed int)
	OnComplete(succeeded, failed int)
}

// NullProgress is a no-op progress reporter.
type NullProgress struct{}

func (NullProgress) OnStart(total int)                           {}
func (NullProgress) OnProgress(processed, succeeded, failed int) {}
func (NullProgress) OnComplete(succeeded, failed int)            {}

// Failure is one record a bulk run could not decide.
type Failure struct {
	ID  int64
	Err error // *listing.DecisionError
}

// BulkResult is the per-item outcome of a bulk run, in processing order.
type BulkResult struct {
	Decision  listing.Decision
	Succeeded []int64
	Failed    []Failure
}

// FailedIDs returns the ids to retry.
func (r *BulkResult) FailedIDs() []int64 {
	ids := make([]int64, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Summary returns a one-line report such as "2 approved, 1 failed: 7".
func (r *BulkResult) Summary() string {
	s := fmt.Sprintf("%d %s", len(r.Succeeded), pastTense(r.Decision.Action))
	if len(r.Failed) == 0 {
		return s
	}
	s += fmt.Sprintf(", %d failed:", len(r.Failed))
	for i, id := range r.FailedIDs() {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %d", id)
	}
	return s
}

func pastTense(a listing.Action) string {
	switch a {
	case listing.ActionApprove:
		return "approved"
	case listing.ActionReject:
		return "rejected"
	case listing.ActionRequestChanges:
		return "returned for changes"
	default:
		return string(a)
	}
}

// BulkExecutor applies one decision to many records, strictly one request at
// a time.
type BulkExecutor struct {
	backend   listing.Backend
	cache     Cache
	selection *selection.Set
	refresh   func()
	logger    *slog.Logger
	progress  Progress
	completed atomic.Int64
}

// NewBulkExecutor creates an executor. sel may be nil when runs are driven
// by explicit id lists only.
func NewBulkExecutor(backend listing.Backend, c Cache, sel *selection.Set) *BulkExecutor {
	return &BulkExecutor{
		backend:   backend,
		cache:     c,
		selection: sel,
		logger:    slog.Default(),
		progress:  NullProgress{},
	}
}

// WithLogger sets the logger.
func (e *BulkExecutor) WithLogger(logger *slog.Logger) *BulkExecutor {
	e.logger = logger
	return e
}

// WithProgress sets the progress reporter.
func (e *BulkExecutor) WithProgress(p Progress) *BulkExecutor {
	e.progress = p
	return e
}

// WithRefresh sets the hook called once after every run to reload the
// visible listing.
func (e *BulkExecutor) WithRefresh(f func()) *BulkExecutor {
	e.refresh = f
	return e
}

// Completed returns how many items the current or last run has processed.
func (e *BulkExecutor) Completed() int {
	return int(e.completed.Load())
}

// RunSelection runs d over a snapshot of the selection members.
func (e *BulkExecutor) RunSelection(ctx context.Context, d listing.Decision) (*BulkResult, error) {
	var ids []int64
	if e.selection != nil {
		ids = e.selection.Members()
	}
	return e.Run(ctx, ids, d)
}

// Run applies d to ids in order. A failed item does not stop the run. If ctx
// is cancelled the unprocessed ids are reported as failed. After the run the
// selection is cleared, succeeded records and all listings are invalidated,
// and the refresh hook fires once.
//
// The returned error is non-nil only when d itself is invalid; in that case
// nothing is submitted and the selection is kept.
func (e *BulkExecutor) Run(ctx context.Context, ids []int64, d listing.Decision) (*BulkResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	e.completed.Store(0)
	result := &BulkResult{Decision: d}

	e.logger.Info("running bulk decision", "action", d.Action, "total", len(ids))
	e.progress.OnStart(len(ids))

	for i, id := range ids {
		if ctx.Err() != nil {
			for _, rest := range ids[i:] {
				result.Failed = append(result.Failed, Failure{
					ID:  rest,
					Err: &listing.DecisionError{ID: rest, Action: d.Action, Err: Classify(ctx.Err())},
				})
			}
			e.logger.Warn("bulk decision interrupted", "remaining", len(ids)-i, "error", ctx.Err())
			break
		}

		if err := listing.Submit(ctx, e.backend, id, d); err != nil {
			e.logger.Warn("bulk item failed", "id", id, "action", d.Action, "error", err)
			result.Failed = append(result.Failed, Failure{
				ID:  id,
				Err: &listing.DecisionError{ID: id, Action: d.Action, Err: Classify(err)},
			})
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}

		e.completed.Add(1)
		e.progress.OnProgress(i+1, len(result.Succeeded), len(result.Failed))
	}

	if e.selection != nil {
		e.selection.Clear()
	}
	if e.cache != nil {
		for _, id := range result.Succeeded {
			e.cache.Invalidate(cache.RecordKey(id))
		}
		e.cache.Invalidate(cache.AllListings())
	}
	if e.refresh != nil {
		e.refresh()
	}

	e.progress.OnComplete(len(result.Succeeded), len(result.Failed))
	e.logger.Info("bulk decision complete",
		"action", d.Action,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}
