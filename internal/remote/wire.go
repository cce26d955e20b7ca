package remote

import (
	"time"

	"github.com/wesm/modconsole/internal/listing"
)

// listResponse matches the backend listing response.
type listResponse struct {
	Ads        []adJSON           `json:"ads"`
	Pagination listing.Pagination `json:"pagination"`
}

// adJSON matches the backend record format used by both listing and detail
// reads.
type adJSON struct {
	ID                int64                   `json:"id"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	Price             float64                 `json:"price"`
	Category          string                  `json:"category"`
	CategoryID        int                     `json:"categoryId"`
	Status            listing.Status          `json:"status"`
	Priority          listing.Priority        `json:"priority"`
	CreatedAt         string                  `json:"createdAt"`
	UpdatedAt         string                  `json:"updatedAt"`
	Images            []string                `json:"images"`
	Seller            sellerJSON              `json:"seller"`
	Characteristics   listing.Characteristics `json:"characteristics"`
	ModerationHistory []historyJSON           `json:"moderationHistory"`
}

type sellerJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Rating       string `json:"rating"`
	TotalAds     int    `json:"totalAds"`
	RegisteredAt string `json:"registeredAt"`
}

// historyJSON tolerates a null reason.
type historyJSON struct {
	ID            int64                 `json:"id"`
	ModeratorID   int64                 `json:"moderatorId"`
	ModeratorName string                `json:"moderatorName"`
	Action        listing.HistoryAction `json:"action"`
	Reason        *string               `json:"reason"`
	Comment       string                `json:"comment"`
	Timestamp     string                `json:"timestamp"`
}

// decisionJSON is the body of reject and request-changes.
type decisionJSON struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment,omitempty"`
}

func decisionBody(d listing.Decision) decisionJSON {
	return decisionJSON{Reason: d.Reason, Comment: d.Comment}
}

// parseTime parses RFC3339 time string.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (a adJSON) summary() listing.RecordSummary {
	s := listing.RecordSummary{
		ID:         a.ID,
		Title:      a.Title,
		Price:      a.Price,
		Category:   a.Category,
		CategoryID: a.CategoryID,
		CreatedAt:  parseTime(a.CreatedAt),
		Status:     a.Status,
		Priority:   a.Priority,
	}
	if len(a.Images) > 0 {
		s.Thumbnail = a.Images[0]
	}
	return s
}

func (a adJSON) detail() *listing.RecordDetail {
	d := &listing.RecordDetail{
		RecordSummary:   a.summary(),
		Description:     a.Description,
		UpdatedAt:       parseTime(a.UpdatedAt),
		Images:          a.Images,
		Characteristics: a.Characteristics,
		Seller: listing.Seller{
			ID:            a.Seller.ID,
			Name:          a.Seller.Name,
			Rating:        a.Seller.Rating,
			TotalListings: a.Seller.TotalAds,
			RegisteredAt:  parseTime(a.Seller.RegisteredAt),
		},
		ModerationHistory: make([]listing.HistoryEntry, len(a.ModerationHistory)),
	}
	for i, h := range a.ModerationHistory {
		e := listing.HistoryEntry{
			ID:            h.ID,
			ModeratorID:   h.ModeratorID,
			ModeratorName: h.ModeratorName,
			Action:        h.Action,
			Comment:       h.Comment,
			Timestamp:     parseTime(h.Timestamp),
		}
		if h.Reason != nil {
			e.Reason = *h.Reason
		}
		d.ModerationHistory[i] = e
	}
	d.SortHistory()
	return d
}
