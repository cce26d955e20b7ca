package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/listing/listingtest"
)

func newTestSession(t *testing.T, mock *listingtest.MockBackend, address string) (*Session, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	s := New(mock, Options{Address: address, Clock: clk})
	t.Cleanup(s.Close)
	return s, clk
}

func TestSelectionSurvivesPagingAndClearsOnFilterCommit(t *testing.T) {
	s, clk := newTestSession(t, &listingtest.MockBackend{}, "")

	s.Selection().Add(5)
	s.SetPage(2)
	if !s.Selection().Contains(5) {
		t.Fatal("selection lost on page change")
	}
	if got := s.Address(); got != "page=2" {
		t.Errorf("address = %q, want page=2", got)
	}

	s.SetPage(1)
	if !s.Selection().Contains(5) {
		t.Fatal("selection lost returning to page 1")
	}

	s.Filters().SetStatuses(listing.StatusApproved)
	clk.Advance(filter.DefaultDebounce)

	if n := s.Selection().Size(); n != 0 {
		t.Errorf("selection size after filter commit = %d, want 0", n)
	}
	if got := s.Address(); got != "status%5B%5D=approved" {
		t.Errorf("address = %q", got)
	}
}

func TestFilterCommitResetsPage(t *testing.T) {
	s, clk := newTestSession(t, &listingtest.MockBackend{}, "search=desk&page=4")

	s.Filters().SetSearch("desk lamp")
	clk.Advance(filter.DefaultDebounce)

	c := s.Criteria()
	if c.Page != 1 || c.Search != "desk lamp" {
		t.Errorf("criteria = %+v, want page 1 with new search", c)
	}
}

func TestSupersededListingResponseIsDropped(t *testing.T) {
	started := make(chan listing.Criteria, 2)
	mock := &listingtest.MockBackend{
		ListRecordsFunc: func(ctx context.Context, c listing.Criteria) (*listing.Page, error) {
			started <- c
			if c.Page == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return &listing.Page{
				Records:    []listing.RecordSummary{{ID: 11}},
				Pagination: listing.Pagination{CurrentPage: c.Page},
			}, nil
		},
	}
	s, _ := newTestSession(t, mock, "")

	errc := make(chan error, 1)
	go func() {
		_, err := s.FetchListing(context.Background())
		errc <- err
	}()
	<-started

	s.SetPage(2)
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("old fetch err = %v, want ErrSuperseded", err)
	}

	res, err := s.FetchListing(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Criteria.Page != 2 || res.Page.Records[0].ID != 11 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	first := make(chan struct{})
	mock := &listingtest.MockBackend{
		ListRecordsFunc: func(ctx context.Context, c listing.Criteria) (*listing.Page, error) {
			once.Do(func() { close(first) })
			select {
			case <-release:
				return &listing.Page{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	s, _ := newTestSession(t, mock, "")

	errc := make(chan error, 1)
	go func() {
		_, err := s.FetchListing(context.Background())
		errc <- err
	}()
	<-first

	second := make(chan error, 1)
	go func() {
		_, err := s.FetchListing(context.Background())
		second <- err
	}()
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Errorf("older fetch err = %v, want ErrSuperseded", err)
	}
	close(release)
	if err := <-second; err != nil {
		t.Errorf("newer fetch err = %v", err)
	}
}

func TestBackForwardRestoresCriteria(t *testing.T) {
	s, clk := newTestSession(t, &listingtest.MockBackend{}, "status[]=pending")

	s.Filters().SetSearch("bike")
	clk.Advance(filter.DefaultDebounce)
	s.SetPage(3)

	var seen []string
	unsubscribe := s.Subscribe(func(c listing.Criteria) { seen = append(seen, filter.Encode(c)) })
	defer unsubscribe()

	if !s.Back() {
		t.Fatal("Back() = false")
	}
	if !s.Back() {
		t.Fatal("second Back() = false")
	}
	if c := s.Criteria(); c.Search != "" || c.Page != 1 {
		t.Errorf("criteria after Back = %+v", c)
	}
	if d := s.Filters().Draft(); d.Search != "" {
		t.Errorf("draft not restored from address: %+v", d)
	}
	if !s.Forward() {
		t.Fatal("Forward() = false")
	}
	if got := s.Criteria().Search; got != "bike" {
		t.Errorf("search after Forward = %q", got)
	}

	want := []string{
		"search=bike&status%5B%5D=pending",
		"status%5B%5D=pending",
		"search=bike&status%5B%5D=pending",
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestDecideDisplayedRecordRefreshes(t *testing.T) {
	mock := &listingtest.MockBackend{Records: map[int64]*listing.RecordDetail{
		7: {RecordSummary: listing.RecordSummary{ID: 7, Status: listing.StatusPending}},
	}}
	mock.DecideFunc = func(_ context.Context, id int64, _ listing.Decision) error {
		mock.Records[id] = &listing.RecordDetail{RecordSummary: listing.RecordSummary{ID: id, Status: listing.StatusApproved}}
		return nil
	}
	s, _ := newTestSession(t, mock, "")
	ctx := context.Background()

	if _, err := s.OpenRecord(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchListing(ctx); err != nil {
		t.Fatal(err)
	}

	out := s.Decide(ctx, 7, listing.Approve())
	if !out.OK() || out.Record == nil || out.Record.Status != listing.StatusApproved {
		t.Fatalf("outcome = %+v", out)
	}
	if n := mock.RecordCalls(7); n != 2 {
		t.Errorf("record reads = %d, want 2", n)
	}

	// The listing was invalidated too.
	if _, err := s.FetchListing(ctx); err != nil {
		t.Fatal(err)
	}
	if n := mock.ListCalls(); n != 2 {
		t.Errorf("listing reads = %d, want 2", n)
	}
}

func TestRecordNavigation(t *testing.T) {
	mock := &listingtest.MockBackend{Records: map[int64]*listing.RecordDetail{
		1: {RecordSummary: listing.RecordSummary{ID: 1}},
		2: {RecordSummary: listing.RecordSummary{ID: 2}},
	}}
	s, _ := newTestSession(t, mock, "")
	ctx := context.Background()

	if _, err := s.NextRecord(ctx); !errors.Is(err, listing.ErrNotFound) {
		t.Errorf("NextRecord with nothing displayed err = %v", err)
	}
	if _, err := s.OpenRecord(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PreviousRecord(ctx); !errors.Is(err, listing.ErrNotFound) {
		t.Errorf("PreviousRecord from 1 err = %v", err)
	}
	rec, err := s.NextRecord(ctx)
	if err != nil || rec.ID != 2 {
		t.Fatalf("NextRecord = %v, %v", rec, err)
	}
	if _, err := s.NextRecord(ctx); !errors.Is(err, listing.ErrNotFound) {
		t.Errorf("NextRecord past end err = %v", err)
	}
	if id, _ := s.Displayed(); id != 2 {
		t.Errorf("displayed = %d after failed navigation, want 2", id)
	}
}

func TestDecideSelectionRefreshesOnce(t *testing.T) {
	mock := &listingtest.MockBackend{FailDecisions: map[int64]error{
		2: fmt.Errorf("HTTP 409: %w", listing.ErrServerRejected),
	}}
	s, _ := newTestSession(t, mock, "")
	notified := 0
	s.Subscribe(func(listing.Criteria) { notified++ })

	for _, id := range []int64{1, 2, 3} {
		s.Selection().Add(id)
	}
	res, err := s.DecideSelection(context.Background(), listing.Reject("Other", "bulk"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1, 3}, res.Succeeded); diff != "" {
		t.Errorf("succeeded mismatch (-want +got):\n%s", diff)
	}
	if s.Selection().Size() != 0 {
		t.Error("selection not cleared")
	}
	if s.Refreshes() != 1 || notified != 1 {
		t.Errorf("refreshes = %d, notified = %d; want 1, 1", s.Refreshes(), notified)
	}
}

func TestCloseStopsPendingCommit(t *testing.T) {
	mock := &listingtest.MockBackend{}
	clk := clock.NewFake(time.Now())
	s := New(mock, Options{Clock: clk})
	notified := 0
	s.Subscribe(func(listing.Criteria) { notified++ })

	s.Filters().SetSearch("phone")
	s.Close()
	clk.Advance(time.Second)
	s.SetPage(3)

	if notified != 0 {
		t.Errorf("subscriber called %d times after Close", notified)
	}
	if _, err := s.FetchListing(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("FetchListing after Close err = %v, want ErrClosed", err)
	}
}

func TestThemeToggle(t *testing.T) {
	s := New(&listingtest.MockBackend{}, Options{Theme: ThemeDark})
	defer s.Close()
	if s.Theme() != ThemeDark {
		t.Fatalf("Theme() = %q", s.Theme())
	}
	if got := s.ToggleTheme(); got != ThemeLight {
		t.Errorf("ToggleTheme() = %q, want light", got)
	}
}
