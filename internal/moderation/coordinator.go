// Package moderation applies reviewer decisions to records and keeps the
// listing cache coherent afterward.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/listing"
)

// Cache is the part of the listing cache the coordinator depends on.
type Cache interface {
	Invalidate(p cache.Pattern)
	Record(ctx context.Context, id int64) (*listing.RecordDetail, error)
}

// DisplayFunc reports the id of the record currently shown in a detail
// view, if any.
type DisplayFunc func() (int64, bool)

// Outcome is the result of a single decision.
type Outcome struct {
	ID       int64
	Decision listing.Decision

	// Err is a *listing.DecisionError when the decision failed.
	Err error

	// Record is the re-read detail when the decided record is displayed.
	Record *listing.RecordDetail
	// RefreshErr is set when the decision succeeded but the re-read failed.
	RefreshErr error
}

// OK reports whether the decision was accepted.
func (o Outcome) OK() bool { return o.Err == nil }

// Coordinator submits single-record decisions.
type Coordinator struct {
	backend listing.Backend
	cache   Cache
	display DisplayFunc
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator submitting through backend and
// invalidating c.
func NewCoordinator(backend listing.Backend, c Cache) *Coordinator {
	return &Coordinator{
		backend: backend,
		cache:   c,
		display: func() (int64, bool) { return 0, false },
		logger:  slog.Default(),
	}
}

// WithDisplay sets the tracker used to decide whether to re-read a record.
func (c *Coordinator) WithDisplay(f DisplayFunc) *Coordinator {
	if f != nil {
		c.display = f
	}
	return c
}

// WithLogger sets the logger.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	c.logger = logger
	return c
}

// Apply validates d and submits it for record id. On success the record key
// and every listing key are invalidated, and the record is re-read if it is
// displayed. On failure the cache is left untouched. Decisions are never
// retried.
func (c *Coordinator) Apply(ctx context.Context, id int64, d listing.Decision) Outcome {
	out := Outcome{ID: id, Decision: d}

	if err := d.Validate(); err != nil {
		out.Err = &listing.DecisionError{ID: id, Action: d.Action, Err: err}
		return out
	}

	if err := listing.Submit(ctx, c.backend, id, d); err != nil {
		out.Err = &listing.DecisionError{ID: id, Action: d.Action, Err: Classify(err)}
		c.logger.Warn("decision failed", "id", id, "action", d.Action, "error", err)
		return out
	}

	c.cache.Invalidate(cache.RecordKey(id))
	c.cache.Invalidate(cache.AllListings())
	c.logger.Info("decision applied", "id", id, "action", d.Action)

	if shown, ok := c.display(); ok && shown == id {
		rec, err := c.cache.Record(ctx, id)
		if err != nil {
			out.RefreshErr = err
			c.logger.Warn("re-read after decision failed", "id", id, "error", err)
		} else {
			out.Record = rec
		}
	}
	return out
}

// Classify maps a backend failure onto the error taxonomy. Errors that
// already carry a taxonomy sentinel pass through; anything else, including
// context cancellation, is treated as a transport failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if listing.Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", listing.ErrTransport, err)
}
