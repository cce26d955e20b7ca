// Package session owns the process-scoped console state: the listing cache,
// the selection, the address history, the filter controller and the
// decision executors. Everything is created by New and torn down by Close.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/keys"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/location"
	"github.com/wesm/modconsole/internal/moderation"
	"github.com/wesm/modconsole/internal/navigate"
	"github.com/wesm/modconsole/internal/selection"
)

// ErrSuperseded is returned by FetchListing when the active criteria changed
// or a newer fetch started before the response arrived. The response is
// discarded.
var ErrSuperseded = errors.New("listing request superseded")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Theme is the console color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Options configures a Session.
type Options struct {
	// Address is the initial address query.
	Address  string
	Debounce time.Duration
	Cache    cache.Options
	Theme    Theme
	Clock    clock.Clock
	Logger   *slog.Logger
}

// ListingResult is a listing page together with the criteria it answers.
type ListingResult struct {
	RequestID uint64
	Criteria  listing.Criteria
	Page      *listing.Page
}

// Session is the console state shared by every view.
type Session struct {
	logger    *slog.Logger
	cache     *cache.Cache
	selection *selection.Set
	history   *location.History
	filters   *filter.Controller
	coord     *moderation.Coordinator
	bulk      *moderation.BulkExecutor
	nav       *navigate.Navigator
	keys      *keys.Registry

	mu          sync.Mutex
	active      listing.Criteria
	requestID   uint64
	cancelFetch context.CancelFunc
	displayed   int64
	hasDisplay  bool
	theme       Theme
	subscribers map[int]func(listing.Criteria)
	nextSub     int
	refreshes   int
	closed      bool
}

// New creates a session reading through backend.
func New(backend listing.Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	theme := opts.Theme
	if theme != ThemeDark {
		theme = ThemeLight
	}

	s := &Session{
		logger:      logger,
		selection:   selection.New(),
		history:     location.New(opts.Address),
		keys:        keys.NewRegistry(),
		theme:       theme,
		subscribers: make(map[int]func(listing.Criteria)),
	}
	s.active = s.history.Criteria()
	s.cache = cache.New(backend, opts.Cache).WithClock(clk).WithLogger(logger)
	s.filters = filter.NewController(s.active, s.commit).
		WithClock(clk).
		WithDelay(opts.Debounce).
		WithLogger(logger)
	s.coord = moderation.NewCoordinator(backend, s.cache).
		WithDisplay(s.Displayed).
		WithLogger(logger)
	s.bulk = moderation.NewBulkExecutor(backend, s.cache, s.selection).
		WithRefresh(s.refresh).
		WithLogger(logger)
	s.nav = navigate.New(s.cache)
	return s
}

// Cache returns the shared listing cache.
func (s *Session) Cache() *cache.Cache { return s.cache }

// Selection returns the shared selection set.
func (s *Session) Selection() *selection.Set { return s.selection }

// Filters returns the filter edit controller.
func (s *Session) Filters() *filter.Controller { return s.filters }

// Keys returns the key binding registry.
func (s *Session) Keys() *keys.Registry { return s.keys }

// Bulk returns the bulk executor, for progress reporting.
func (s *Session) Bulk() *moderation.BulkExecutor { return s.bulk }

// Criteria returns the active criteria.
func (s *Session) Criteria() listing.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Address returns the current address query.
func (s *Session) Address() string { return s.history.Current() }

// Subscribe registers f to receive every criteria change. The returned
// function unsubscribes.
func (s *Session) Subscribe(f func(listing.Criteria)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = f
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// SetPage moves the listing to page n. The selection is kept.
func (s *Session) SetPage(n int) {
	s.apply(s.Criteria().WithPage(n), true)
}

// Navigate loads an address typed or pasted by the reviewer.
func (s *Session) Navigate(query string) {
	c := filter.Decode(query)
	s.filters.Reset(c)
	s.apply(c, true)
}

// Back restores the previous address. It reports whether there was one.
func (s *Session) Back() bool {
	q, ok := s.history.Back()
	if ok {
		s.restore(q)
	}
	return ok
}

// Forward restores the next address. It reports whether there was one.
func (s *Session) Forward() bool {
	q, ok := s.history.Forward()
	if ok {
		s.restore(q)
	}
	return ok
}

func (s *Session) restore(query string) {
	c := filter.Decode(query)
	s.filters.Reset(c)
	s.apply(c, false)
}

// commit receives snapshots from the filter controller.
func (s *Session) commit(c listing.Criteria) {
	s.apply(c, true)
}

// apply makes c the active criteria. A change of any field other than the
// page clears the selection, and any change cancels the in-flight listing
// fetch for the old criteria.
func (s *Session) apply(c listing.Criteria, push bool) {
	c = c.Normalize()

	s.mu.Lock()
	if s.closed || c.Equal(s.active) {
		s.mu.Unlock()
		return
	}
	prev := s.active
	s.active = c
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	subs := make([]func(listing.Criteria), 0, len(s.subscribers))
	for _, f := range s.subscribers {
		subs = append(subs, f)
	}
	s.mu.Unlock()

	if !prev.WithPage(1).Equal(c.WithPage(1)) {
		s.selection.Clear()
	}
	if push {
		s.history.Push(filter.Encode(c))
	}
	s.logger.Debug("criteria changed", "address", filter.Encode(c))

	for _, f := range subs {
		f(c)
	}
}

// FetchListing reads the page for the active criteria. A fetch started
// later, or a criteria change before the response arrives, makes this call
// return ErrSuperseded and cancels its request.
func (s *Session) FetchListing(ctx context.Context) (*ListingResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.requestID++
	id := s.requestID
	crit := s.active
	fctx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.mu.Unlock()

	page, err := s.cache.Listing(fctx, crit)

	s.mu.Lock()
	current := id == s.requestID && filter.Fingerprint(crit) == filter.Fingerprint(s.active)
	if id == s.requestID {
		s.cancelFetch = nil
	}
	s.mu.Unlock()
	cancel()

	if !current {
		s.logger.Debug("dropping superseded listing response", "request_id", id)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return &ListingResult{RequestID: id, Criteria: crit, Page: page}, nil
}

// Displayed reports the record shown in the detail view.
func (s *Session) Displayed() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed, s.hasDisplay
}

// OpenRecord shows record id and returns its detail.
func (s *Session) OpenRecord(ctx context.Context, id int64) (*listing.RecordDetail, error) {
	rec, err := s.cache.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setDisplayed(id)
	return rec, nil
}

// CloseRecord leaves the detail view.
func (s *Session) CloseRecord() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasDisplay = false
	s.displayed = 0
}

// NextRecord opens the record after the displayed one. On failure the
// displayed record does not change.
func (s *Session) NextRecord(ctx context.Context) (*listing.RecordDetail, error) {
	cur, ok := s.Displayed()
	if !ok {
		return nil, listing.ErrNotFound
	}
	rec, err := s.nav.Next(ctx, cur)
	if err != nil {
		return nil, err
	}
	s.setDisplayed(rec.ID)
	return rec, nil
}

// PreviousRecord opens the record before the displayed one.
func (s *Session) PreviousRecord(ctx context.Context) (*listing.RecordDetail, error) {
	cur, ok := s.Displayed()
	if !ok {
		return nil, listing.ErrNotFound
	}
	rec, err := s.nav.Previous(ctx, cur)
	if err != nil {
		return nil, err
	}
	s.setDisplayed(rec.ID)
	return rec, nil
}

func (s *Session) setDisplayed(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed = id
	s.hasDisplay = true
}

// Decide applies d to record id.
func (s *Session) Decide(ctx context.Context, id int64, d listing.Decision) moderation.Outcome {
	return s.coord.Apply(ctx, id, d)
}

// DecideSelection applies d to every selected record in selection order.
func (s *Session) DecideSelection(ctx context.Context, d listing.Decision) (*moderation.BulkResult, error) {
	return s.bulk.RunSelection(ctx, d)
}

// refresh runs once after every bulk run.
func (s *Session) refresh() {
	s.mu.Lock()
	s.refreshes++
	c := s.active
	subs := make([]func(listing.Criteria), 0, len(s.subscribers))
	for _, f := range s.subscribers {
		subs = append(subs, f)
	}
	s.mu.Unlock()
	for _, f := range subs {
		f(c)
	}
}

// Refreshes returns how many bulk refreshes have been triggered.
func (s *Session) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Theme returns the color scheme.
func (s *Session) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ToggleTheme switches between light and dark and returns the new theme.
func (s *Session) ToggleTheme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	return s.theme
}

// Close tears the session down: pending filter commits are cancelled, the
// in-flight listing fetch is cancelled and no subscriber is called again.
func (s *Session) Close() {
	// The filter controller may be delivering a commit that needs s.mu.
	s.filters.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.subscribers = map[int]func(listing.Criteria){}
}
