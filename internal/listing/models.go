// Package listing defines the moderation domain types shared by the console
// components and the backend client.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// PageLimit is the fixed number of records requested per listing page.
const PageLimit = 10

// Status is the moderation state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDraft    Status = "draft"
)

// FilterStatuses are the statuses a reviewer can filter by, in canonical order.
var FilterStatuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Priority marks how urgently a record should be reviewed.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// FilterPriorities are the priorities a reviewer can filter by, in canonical order.
var FilterPriorities = []Priority{PriorityNormal, PriorityUrgent}

// SortField selects the listing sort key.
type SortField string

const (
	SortNone      SortField = ""
	SortCreatedAt SortField = "createdAt"
	SortPrice     SortField = "price"
	SortPriority  SortField = "priority"
)

// SortOrder selects the listing sort direction.
type SortOrder string

const (
	OrderNone SortOrder = ""
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Category is an entry of the fixed category table.
type Category struct {
	ID    int
	Label string
}

// Categories is the category table offered by the filter panel.
var Categories = []Category{
	{0, "Electronics"},
	{1, "Real estate"},
	{2, "Transport"},
	{3, "Jobs"},
	{4, "Services"},
	{5, "Animals"},
	{6, "Fashion"},
	{7, "Kids"},
}

// CategoryLabel returns the label for a category id, or "" if unknown.
func CategoryLabel(id int) string {
	for _, c := range Categories {
		if c.ID == id {
			return c.Label
		}
	}
	return ""
}

// Reasons are the canonical reasons offered for reject and request-changes.
var Reasons = []string{
	"Prohibited item",
	"Wrong category",
	"Incorrect description",
	"Photo problems",
	"Suspected fraud",
	"Other",
}

// Criteria is the filter and pagination state of the listing view.
// It is a value type: every edit produces a new Criteria.
type Criteria struct {
	Search     string
	Statuses   []Status
	Priorities []Priority
	CategoryID *int
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     SortField
	SortOrder  SortOrder
	Page       int
	Limit      int
}

// DefaultCriteria returns the unfiltered first page.
func DefaultCriteria() Criteria {
	return Criteria{Page: 1, Limit: PageLimit}
}

// Normalize returns a canonical copy of c: page at least 1, fixed limit,
// deduplicated sets in canonical order, valid prices with min <= max.
func (c Criteria) Normalize() Criteria {
	out := Criteria{
		Search:    c.Search,
		SortBy:    c.SortBy,
		SortOrder: c.SortOrder,
		Page:      c.Page,
		Limit:     PageLimit,
	}
	if strings.TrimSpace(out.Search) == "" {
		out.Search = ""
	}
	if out.Page < 1 {
		out.Page = 1
	}
	out.Statuses = canonicalSet(c.Statuses, FilterStatuses)
	out.Priorities = canonicalSet(c.Priorities, FilterPriorities)
	if c.CategoryID != nil && *c.CategoryID >= 0 {
		id := *c.CategoryID
		out.CategoryID = &id
	}
	out.MinPrice = validPrice(c.MinPrice)
	out.MaxPrice = validPrice(c.MaxPrice)
	if out.MinPrice != nil && out.MaxPrice != nil && *out.MinPrice > *out.MaxPrice {
		out.MinPrice, out.MaxPrice = out.MaxPrice, out.MinPrice
	}
	switch out.SortBy {
	case SortCreatedAt, SortPrice, SortPriority:
	default:
		out.SortBy = SortNone
	}
	switch out.SortOrder {
	case OrderAsc, OrderDesc:
	default:
		out.SortOrder = OrderNone
	}
	return out
}

// IsEmpty reports whether no filter field is set. Page and sort are ignored.
func (c Criteria) IsEmpty() bool {
	return c.Search == "" && len(c.Statuses) == 0 && len(c.Priorities) == 0 &&
		c.CategoryID == nil && c.MinPrice == nil && c.MaxPrice == nil
}

// WithPage returns a copy of c on the given page.
func (c Criteria) WithPage(page int) Criteria {
	out := c.clone()
	out.Page = page
	return out.Normalize()
}

// Equal reports whether two criteria select the same listing page.
func (c Criteria) Equal(o Criteria) bool {
	a, b := c.Normalize(), o.Normalize()
	return a.Search == b.Search &&
		slices.Equal(a.Statuses, b.Statuses) &&
		slices.Equal(a.Priorities, b.Priorities) &&
		equalPtr(a.CategoryID, b.CategoryID) &&
		equalPtr(a.MinPrice, b.MinPrice) &&
		equalPtr(a.MaxPrice, b.MaxPrice) &&
		a.SortBy == b.SortBy && a.SortOrder == b.SortOrder &&
		a.Page == b.Page && a.Limit == b.Limit
}

func (c Criteria) clone() Criteria {
	out := c
	out.Statuses = slices.Clone(c.Statuses)
	out.Priorities = slices.Clone(c.Priorities)
	if c.CategoryID != nil {
		v := *c.CategoryID
		out.CategoryID = &v
	}
	if c.MinPrice != nil {
		v := *c.MinPrice
		out.MinPrice = &v
	}
	if c.MaxPrice != nil {
		v := *c.MaxPrice
		out.MaxPrice = &v
	}
	return out
}

func canonicalSet[T comparable](in []T, order []T) []T {
	if len(in) == 0 {
		return nil
	}
	var out []T
	for _, v := range order {
		if slices.Contains(in, v) {
			out = append(out, v)
		}
	}
	return out
}

func validPrice(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 {
		return nil
	}
	v := *p
	return &v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Pagination describes the position of a listing page.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Page is one page of listing results.
type Page struct {
	Records    []RecordSummary
	Pagination Pagination
}

// RecordSummary is the subset of a record needed to render a listing row.
type RecordSummary struct {
	ID         int64
	Title      string
	Price      float64
	Category   string
	CategoryID int
	CreatedAt  time.Time
	Status     Status
	Priority   Priority
	Thumbnail  string
}

// Seller describes the account that submitted a record.
type Seller struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Rating        string    `json:"rating"`
	TotalListings int       `json:"totalAds"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// HistoryAction is the verdict recorded in the moderation history.
type HistoryAction string

const (
	HistoryApproved       HistoryAction = "approved"
	HistoryRejected       HistoryAction = "rejected"
	HistoryRequestChanges HistoryAction = "requestChanges"
)

// HistoryEntry is one audited decision.
type HistoryEntry struct {
	ID            int64         `json:"id"`
	ModeratorID   int64         `json:"moderatorId"`
	ModeratorName string        `json:"moderatorName"`
	Action        HistoryAction `json:"action"`
	Reason        string        `json:"reason,omitempty"`
	Comment       string        `json:"comment,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Characteristic is one label/value row of a record's characteristics table.
type Characteristic struct {
	Label string
	Value string
}

// Characteristics keeps the label order of the backend's JSON object, which is
// the display order.
type Characteristics []Characteristic

// Get returns the value for label.
func (cs Characteristics) Get(label string) (string, bool) {
	for _, c := range cs {
		if c.Label == label {
			return c.Value, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes a JSON object preserving key order. Non-string values
// are kept in their JSON text form.
func (cs *Characteristics) UnmarshalJSON(data []byte) error {
	*cs = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("characteristics: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("characteristics %q: %w", label, err)
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		*cs = append(*cs, Characteristic{Label: label, Value: value})
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the characteristics as a JSON object in order.
func (cs Characteristics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordDetail is the full view of a single record.
type RecordDetail struct {
	RecordSummary
	Description       string
	UpdatedAt         time.Time
	Images            []string
	Characteristics   Characteristics
	Seller            Seller
	ModerationHistory []HistoryEntry
}

// SortHistory orders the moderation history oldest to newest.
func (d *RecordDetail) SortHistory() {
	sort.SliceStable(d.ModerationHistory, func(i, j int) bool {
		return d.ModerationHistory[i].Timestamp.Before(d.ModerationHistory[j].Timestamp)
	})
}

// FilterByPriority keeps only records whose priority is in the set. The
// listing read has no priority parameter, so this runs on fetched pages.
func FilterByPriority(records []RecordSummary, priorities []Priority) []RecordSummary {
	if len(priorities) == 0 {
		return records
	}
	out := make([]RecordSummary, 0, len(records))
	for _, r := range records {
		if slices.Contains(priorities, r.Priority) {
			out = append(out, r)
		}
	}
	return out
}

// StatsPeriod selects the reporting window of the statistics endpoint.
type StatsPeriod string

const (
	PeriodToday StatsPeriod = "today"
	PeriodWeek  StatsPeriod = "week"
	PeriodMonth StatsPeriod = "month"
)

// StatsSummary is the read-only moderation report.
type StatsSummary struct {
	TotalReviewed            int     `json:"totalReviewed"`
	TotalReviewedToday       int     `json:"totalReviewedToday"`
	TotalReviewedThisWeek    int     `json:"totalReviewedThisWeek"`
	TotalReviewedThisMonth   int     `json:"totalReviewedThisMonth"`
	ApprovedPercentage       float64 `json:"approvedPercentage"`
	RejectedPercentage       float64 `json:"rejectedPercentage"`
	RequestChangesPercentage float64 `json:"requestChangesPercentage"`
	AverageReviewTime        int     `json:"averageReviewTime"` // seconds
}
