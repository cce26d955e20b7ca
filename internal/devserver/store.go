package devserver

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/listing"
)

// errConflict is returned when a decision does not change the record's state.
var errConflict = errors.New("invalid status transition")

// Store is an in-memory moderation queue.
type Store struct {
	mu        sync.Mutex
	clock     clock.Clock
	records   []*listing.RecordDetail // index i holds id i+1
	historyID int64
}

// moderator is the account every dev server decision is attributed to.
var moderator = struct {
	ID   int64
	Name string
}{ID: 1, Name: "Dev Moderator"}

var titleNouns = map[int][]string{
	0: {"Smartphone", "Laptop", "Headphones", "Camera", "Monitor"},
	1: {"Studio flat", "Two-room apartment", "Country house", "Garage", "Office"},
	2: {"Sedan", "Motorbike", "Bicycle", "Van", "Scooter"},
	3: {"Courier", "Barista", "Accountant", "Developer", "Driver"},
	4: {"Plumbing repair", "Tutoring", "House cleaning", "Moving help", "Photography"},
	5: {"Kitten", "Puppy", "Parrot", "Aquarium fish", "Rabbit"},
	6: {"Winter jacket", "Sneakers", "Dress", "Handbag", "Watch"},
	7: {"Stroller", "Car seat", "Lego set", "Crib", "School backpack"},
}

var adjectives = []string{"Used", "New", "Excellent", "Vintage", "Compact", "Spacious", "Cheap"}

var sellerNames = []string{"Anna", "Boris", "Chen", "Dmitri", "Elena", "Farid", "Grace", "Hugo"}

// NewStore returns a store seeded with n generated records. The same seed
// always yields the same records relative to the clock's start time.
func NewStore(n int, seed int64, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Store{clock: clk}
	rng := rand.New(rand.NewPCG(uint64(seed), 0x6d6f64))
	now := clk.Now().UTC().Truncate(time.Second)
	for i := range n {
		s.records = append(s.records, s.generate(rng, int64(i+1), now))
	}
	return s
}

func (s *Store) generate(rng *rand.Rand, id int64, now time.Time) *listing.RecordDetail {
	cat := listing.Categories[rng.IntN(len(listing.Categories))]
	nouns := titleNouns[cat.ID]
	title := adjectives[rng.IntN(len(adjectives))] + " " + strings.ToLower(nouns[rng.IntN(len(nouns))])

	created := now.Add(-time.Duration(rng.IntN(30*24)) * time.Hour)
	status := listing.StatusPending
	switch r := rng.IntN(10); {
	case r == 6 || r == 7:
		status = listing.StatusApproved
	case r == 8:
		status = listing.StatusRejected
	case r == 9:
		status = listing.StatusDraft
	}
	priority := listing.PriorityNormal
	if rng.IntN(5) == 0 {
		priority = listing.PriorityUrgent
	}

	rec := &listing.RecordDetail{
		RecordSummary: listing.RecordSummary{
			ID:         id,
			Title:      title,
			Price:      float64(100 * (1 + rng.IntN(5000))),
			Category:   cat.Label,
			CategoryID: cat.ID,
			CreatedAt:  created,
			Status:     status,
			Priority:   priority,
		},
		Description: fmt.Sprintf("%s in good condition. Pickup or delivery by arrangement.", title),
		UpdatedAt:   created,
		Characteristics: listing.Characteristics{
			{Label: "Condition", Value: []string{"New", "Used"}[rng.IntN(2)]},
			{Label: "Warranty", Value: []string{"None", "6 months", "1 year"}[rng.IntN(3)]},
			{Label: "Delivery", Value: []string{"Pickup only", "Courier", "Post"}[rng.IntN(3)]},
		},
		Seller: listing.Seller{
			ID:            int64(1000 + rng.IntN(200)),
			Name:          sellerNames[rng.IntN(len(sellerNames))],
			Rating:        fmt.Sprintf("%.1f", 3+rng.Float64()*2),
			TotalListings: 1 + rng.IntN(40),
			RegisteredAt:  created.Add(-time.Duration(30+rng.IntN(700)) * 24 * time.Hour),
		},
	}
	for j := range 1 + rng.IntN(3) {
		rec.Images = append(rec.Images, fmt.Sprintf("https://placehold.co/600x400?text=%d-%d", id, j+1))
	}

	var action listing.HistoryAction
	switch status {
	case listing.StatusApproved:
		action = listing.HistoryApproved
	case listing.StatusRejected:
		action = listing.HistoryRejected
	case listing.StatusDraft:
		action = listing.HistoryRequestChanges
	}
	if action != "" {
		at := created.Add(time.Duration(1+rng.IntN(48)) * time.Hour)
		if at.After(now) {
			at = now
		}
		entry := listing.HistoryEntry{Action: action, Timestamp: at}
		if action != listing.HistoryApproved {
			entry.Reason = listing.Reasons[rng.IntN(len(listing.Reasons))]
		}
		s.appendHistory(rec, entry)
	}
	return rec
}

// appendHistory must be called with s.mu held or during construction.
func (s *Store) appendHistory(rec *listing.RecordDetail, e listing.HistoryEntry) {
	s.historyID++
	e.ID = s.historyID
	e.ModeratorID = moderator.ID
	e.ModeratorName = moderator.Name
	rec.ModerationHistory = append(rec.ModerationHistory, e)
	rec.UpdatedAt = e.Timestamp
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// List returns the page of records matching c, limit records per page.
// Priority is not a server-side filter.
func (s *Store) List(c listing.Criteria, limit int) ([]listing.RecordDetail, listing.Pagination) {
	if limit < 1 {
		limit = listing.PageLimit
	}
	page := c.Page
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	var matched []listing.RecordDetail
	for _, r := range s.records {
		if matches(r, c) {
			matched = append(matched, copyRecord(r))
		}
	}
	s.mu.Unlock()

	sortRecords(matched, c.SortBy, c.SortOrder)

	total := len(matched)
	p := listing.Pagination{
		CurrentPage:  page,
		TotalPages:   (total + limit - 1) / limit,
		TotalItems:   total,
		ItemsPerPage: limit,
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, p
	}
	end := min(start+limit, total)
	return matched[start:end], p
}

func matches(r *listing.RecordDetail, c listing.Criteria) bool {
	if len(c.Statuses) > 0 && !slices.Contains(c.Statuses, r.Status) {
		return false
	}
	if c.CategoryID != nil && r.CategoryID != *c.CategoryID {
		return false
	}
	if c.MinPrice != nil && r.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && r.Price > *c.MaxPrice {
		return false
	}
	if c.Search != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(c.Search)) {
		return false
	}
	return true
}

func sortRecords(rs []listing.RecordDetail, by listing.SortField, order listing.SortOrder) {
	if by == listing.SortNone {
		return
	}
	sign := 1
	if order == listing.OrderDesc {
		sign = -1
	}
	slices.SortStableFunc(rs, func(a, b listing.RecordDetail) int {
		var d int
		switch by {
		case listing.SortCreatedAt:
			d = a.CreatedAt.Compare(b.CreatedAt)
		case listing.SortPrice:
			switch {
			case a.Price < b.Price:
				d = -1
			case a.Price > b.Price:
				d = 1
			}
		case listing.SortPriority:
			d = priorityRank(a.Priority) - priorityRank(b.Priority)
		}
		return sign * d
	})
}

func priorityRank(p listing.Priority) int {
	if p == listing.PriorityUrgent {
		return 1
	}
	return 0
}

// Get returns a copy of record id.
func (s *Store) Get(id int64) (listing.RecordDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookup(id)
	if r == nil {
		return listing.RecordDetail{}, false
	}
	return copyRecord(r), true
}

func (s *Store) lookup(id int64) *listing.RecordDetail {
	if id < 1 || id > int64(len(s.records)) {
		return nil
	}
	return s.records[id-1]
}

// Decide applies d to record id and appends it to the moderation history.
// A decision that would leave the status unchanged returns errConflict.
func (s *Store) Decide(id int64, d listing.Decision) error {
	var (
		target listing.Status
		action listing.HistoryAction
	)
	switch d.Action {
	case listing.ActionApprove:
		target, action = listing.StatusApproved, listing.HistoryApproved
	case listing.ActionReject:
		target, action = listing.StatusRejected, listing.HistoryRejected
	case listing.ActionRequestChanges:
		target, action = listing.StatusDraft, listing.HistoryRequestChanges
	default:
		return fmt.Errorf("%w: unknown action %q", listing.ErrValidation, d.Action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookup(id)
	if r == nil {
		return listing.ErrNotFound
	}
	if r.Status == target {
		return fmt.Errorf("%w: record %d is already %s", errConflict, id, target)
	}
	r.Status = target
	s.appendHistory(r, listing.HistoryEntry{
		Action:    action,
		Reason:    d.Reason,
		Comment:   d.Comment,
		Timestamp: s.clock.Now().UTC().Truncate(time.Second),
	})
	return nil
}

// Stats summarizes the decisions recorded in period.
func (s *Store) Stats(period listing.StatsPeriod) listing.StatsSummary {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, -1, 0)

	var since time.Time
	switch period {
	case listing.PeriodToday:
		since = today
	case listing.PeriodMonth:
		since = month
	default:
		since = week
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out listing.StatsSummary
	var approved, rejected, changes int
	var reviewSeconds int64
	for _, r := range s.records {
		for _, h := range r.ModerationHistory {
			out.TotalReviewed++
			if !h.Timestamp.Before(today) {
				out.TotalReviewedToday++
			}
			if !h.Timestamp.Before(week) {
				out.TotalReviewedThisWeek++
			}
			if !h.Timestamp.Before(month) {
				out.TotalReviewedThisMonth++
			}
			if h.Timestamp.Before(since) {
				continue
			}
			switch h.Action {
			case listing.HistoryApproved:
				approved++
			case listing.HistoryRejected:
				rejected++
			case listing.HistoryRequestChanges:
				changes++
			}
			reviewSeconds += int64(h.Timestamp.Sub(r.CreatedAt) / time.Second)
		}
	}
	if n := approved + rejected + changes; n > 0 {
		out.ApprovedPercentage = percent(approved, n)
		out.RejectedPercentage = percent(rejected, n)
		out.RequestChangesPercentage = percent(changes, n)
		out.AverageReviewTime = int(reviewSeconds / int64(n))
	}
	return out
}

func percent(part, total int) float64 {
	return float64(part*1000/total) / 10
}

func copyRecord(r *listing.RecordDetail) listing.RecordDetail {
	c := *r
	c.Images = slices.Clone(r.Images)
	c.Characteristics = slices.Clone(r.Characteristics)
	c.ModerationHistory = slices.Clone(r.ModerationHistory)
	return c
}
