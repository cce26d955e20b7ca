// Package listingtest provides shared test doubles for the listing.Backend interface.
package listingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wesm/modconsole/internal/listing"
)

// Call records a decision submitted to the mock.
type Call struct {
	ID       int64
	Decision listing.Decision
}

// MockBackend implements listing.Backend for testing. Each method delegates to
// an optional function field; when the field is nil, canned data is used.
type MockBackend struct {
	Page    *listing.Page
	Records map[int64]*listing.RecordDetail
	Stats   *listing.StatsSummary

	// FailDecisions maps a record id to the error its decision returns.
	FailDecisions map[int64]error

	// Optional overrides.
	ListRecordsFunc func(context.Context, listing.Criteria) (*listing.Page, error)
	GetRecordFunc   func(context.Context, int64) (*listing.RecordDetail, error)
	DecideFunc      func(context.Context, int64, listing.Decision) error

	mu          sync.Mutex
	listCalls   int
	recordCalls map[int64]int
	decisions   []Call
}

// Compile-time check.
var _ listing.Backend = (*MockBackend)(nil)

func (m *MockBackend) ListRecords(ctx context.Context, c listing.Criteria) (*listing.Page, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.ListRecordsFunc != nil {
		return m.ListRecordsFunc(ctx, c)
	}
	if m.Page != nil {
		return m.Page, nil
	}
	return &listing.Page{Pagination: listing.Pagination{CurrentPage: c.Page, TotalPages: 1}}, nil
}

func (m *MockBackend) GetRecord(ctx context.Context, id int64) (*listing.RecordDetail, error) {
	m.mu.Lock()
	if m.recordCalls == nil {
		m.recordCalls = make(map[int64]int)
	}
	m.recordCalls[id]++
	m.mu.Unlock()
	if m.GetRecordFunc != nil {
		return m.GetRecordFunc(ctx, id)
	}
	if r, ok := m.Records[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("record %d: %w", id, listing.ErrNotFound)
}

func (m *MockBackend) Approve(ctx context.Context, id int64) error {
	return m.decide(ctx, id, listing.Approve())
}

func (m *MockBackend) Reject(ctx context.Context, id int64, d listing.Decision) error {
	return m.decide(ctx, id, d)
}

func (m *MockBackend) RequestChanges(ctx context.Context, id int64, d listing.Decision) error {
	return m.decide(ctx, id, d)
}

func (m *MockBackend) StatsSummary(_ context.Context, _ listing.StatsPeriod) (*listing.StatsSummary, error) {
	if m.Stats != nil {
		return m.Stats, nil
	}
	return &listing.StatsSummary{}, nil
}

func (m *MockBackend) decide(ctx context.Context, id int64, d listing.Decision) error {
	m.mu.Lock()
	m.decisions = append(m.decisions, Call{ID: id, Decision: d})
	m.mu.Unlock()
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, id, d)
	}
	if err, ok := m.FailDecisions[id]; ok {
		return err
	}
	return nil
}

// ListCalls returns the number of ListRecords calls.
func (m *MockBackend) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// RecordCalls returns the number of GetRecord calls for id.
func (m *MockBackend) RecordCalls(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordCalls[id]
}

// Decisions returns the submitted decisions in call order.
func (m *MockBackend) Decisions() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// DecidedIDs returns the ids of submitted decisions in call order.
func (m *MockBackend) DecidedIDs() []int64 {
	calls := m.Decisions()
	ids := make([]int64, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	return ids
}
