package filter

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/listing"
)

// DefaultDebounce is the quiet period after the last edit before it commits.
const DefaultDebounce = 300 * time.Millisecond

// Draft holds the uncommitted values of every filter field.
type Draft struct {
	Search     string
	Statuses   []listing.Status
	Priorities []listing.Priority
	CategoryID *int
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     listing.SortField
	SortOrder  listing.SortOrder
}

// DraftFrom extracts the filter fields of c.
func DraftFrom(c listing.Criteria) Draft {
	c = c.Normalize()
	return Draft{
		Search:     c.Search,
		Statuses:   c.Statuses,
		Priorities: c.Priorities,
		CategoryID: c.CategoryID,
		MinPrice:   c.MinPrice,
		MaxPrice:   c.MaxPrice,
		SortBy:     c.SortBy,
		SortOrder:  c.SortOrder,
	}
}

// Criteria builds first-page criteria from every field of the draft.
func (d Draft) Criteria() listing.Criteria {
	return listing.Criteria{
		Search:     d.Search,
		Statuses:   slices.Clone(d.Statuses),
		Priorities: slices.Clone(d.Priorities),
		CategoryID: d.CategoryID,
		MinPrice:   d.MinPrice,
		MaxPrice:   d.MaxPrice,
		SortBy:     d.SortBy,
		SortOrder:  d.SortOrder,
		Page:       1,
	}.Normalize()
}

// Controller owns transient filter edits and commits them after a debounce
// window. Only the last edit inside the window commits, and every commit
// resets pagination to the first page.
type Controller struct {
	clock    clock.Clock
	delay    time.Duration
	onCommit func(listing.Criteria)
	logger   *slog.Logger

	mu        sync.Mutex
	draft     Draft
	committed listing.Criteria
	timer     clock.Timer
	gen       uint64 // bumped on every edit; a timer only commits its own generation
	closed    bool

	// commitMu is held while onCommit runs so Close can wait it out.
	commitMu sync.Mutex
}

// NewController creates a controller seeded with the committed criteria.
// onCommit receives every committed snapshot.
func NewController(initial listing.Criteria, onCommit func(listing.Criteria)) *Controller {
	initial = initial.Normalize()
	return &Controller{
		clock:     clock.Real{},
		delay:     DefaultDebounce,
		onCommit:  onCommit,
		logger:    slog.Default(),
		draft:     DraftFrom(initial),
		committed: initial,
	}
}

// WithClock sets the clock used for the debounce timer.
func (c *Controller) WithClock(clk clock.Clock) *Controller {
	c.clock = clk
	return c
}

// WithDelay sets the debounce delay.
func (c *Controller) WithDelay(d time.Duration) *Controller {
	if d > 0 {
		c.delay = d
	}
	return c
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(logger *slog.Logger) *Controller {
	c.logger = logger
	return c
}

// Draft returns a copy of the uncommitted field values.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.Statuses = slices.Clone(d.Statuses)
	d.Priorities = slices.Clone(d.Priorities)
	return d
}

// Committed returns the last committed snapshot.
func (c *Controller) Committed() listing.Criteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Pending reports whether an edit is waiting for its debounce window.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// SetSearch edits the search text.
func (c *Controller) SetSearch(s string) { c.edit(func(d *Draft) { d.Search = s }) }

// SetStatuses edits the status set.
func (c *Controller) SetStatuses(s ...listing.Status) {
	c.edit(func(d *Draft) { d.Statuses = slices.Clone(s) })
}

// SetPriorities edits the priority set.
func (c *Controller) SetPriorities(p ...listing.Priority) {
	c.edit(func(d *Draft) { d.Priorities = slices.Clone(p) })
}

// SetCategory edits the category; nil clears it.
func (c *Controller) SetCategory(id *int) { c.edit(func(d *Draft) { d.CategoryID = id }) }

// SetMinPrice edits the lower price bound; nil clears it.
func (c *Controller) SetMinPrice(p *float64) { c.edit(func(d *Draft) { d.MinPrice = p }) }

// SetMaxPrice edits the upper price bound; nil clears it.
func (c *Controller) SetMaxPrice(p *float64) { c.edit(func(d *Draft) { d.MaxPrice = p }) }

// SetSort edits the sort field and direction.
func (c *Controller) SetSort(field listing.SortField, order listing.SortOrder) {
	c.edit(func(d *Draft) {
		d.SortBy = field
		d.SortOrder = order
	})
}

// ClearAll resets every field and commits empty criteria immediately,
// cancelling any pending debounce.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.gen++
	c.draft = Draft{}
	c.committed = listing.DefaultCriteria()
	snapshot := c.committed
	c.mu.Unlock()

	c.logger.Debug("filters cleared")
	c.deliver(snapshot)
}

// Reset replaces draft and committed state with c without committing. Used
// when the address changes underneath the controller (back/forward).
func (c *Controller) Reset(crit listing.Criteria) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.gen++
	crit = crit.Normalize()
	c.draft = DraftFrom(crit)
	c.committed = crit
}

// Close cancels any pending commit. After Close returns no commit fires.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.gen++
	c.mu.Unlock()

	// Wait for a commit that was already running.
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
}

func (c *Controller) edit(apply func(*Draft)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	before := c.draft.Criteria()
	apply(&c.draft)
	if c.timer == nil && before.Equal(c.draft.Criteria()) {
		return
	}

	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	snapshot := c.draft.Criteria()
	c.committed = snapshot
	c.mu.Unlock()

	c.logger.Debug("filters committed", "query", Encode(snapshot))
	c.deliver(snapshot)
}

func (c *Controller) deliver(snapshot listing.Criteria) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || c.onCommit == nil {
		return
	}
	c.onCommit(snapshot)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
