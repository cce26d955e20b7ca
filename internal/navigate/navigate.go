// Package navigate moves between records of the detail view by adjacent
// identifier.
package navigate

import (
	"context"
	"fmt"

	"github.com/wesm/modconsole/internal/listing"
)

// Reader loads a record by id.
type Reader interface {
	Record(ctx context.Context, id int64) (*listing.RecordDetail, error)
}

// Navigator computes previous/next targets. Targets are the adjacent ids and
// are not checked against the active filter: "next" may land on a record the
// listing would exclude, or on an id that does not exist.
type Navigator struct {
	reader Reader
}

// New creates a navigator loading targets through r.
func New(r Reader) *Navigator {
	return &Navigator{reader: r}
}

// NextID returns the id after current.
func NextID(current int64) int64 { return current + 1 }

// PreviousID returns the id before current, or false when there is none.
func PreviousID(current int64) (int64, bool) {
	if current <= 1 {
		return 0, false
	}
	return current - 1, true
}

// Next loads the record after current.
func (n *Navigator) Next(ctx context.Context, current int64) (*listing.RecordDetail, error) {
	return n.reader.Record(ctx, NextID(current))
}

// Previous loads the record before current. Ids below 1 fail with
// listing.ErrNotFound without a request.
func (n *Navigator) Previous(ctx context.Context, current int64) (*listing.RecordDetail, error) {
	id, ok := PreviousID(current)
	if !ok {
		return nil, fmt.Errorf("record before %d: %w", current, listing.ErrNotFound)
	}
	return n.reader.Record(ctx, id)
}
