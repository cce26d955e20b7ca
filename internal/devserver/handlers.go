package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
)

// AdResponse is the record format of both listing and detail reads.
type AdResponse struct {
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
	Seller            SellerResponse          `json:"seller"`
	Characteristics   listing.Characteristics `json:"characteristics"`
	ModerationHistory []HistoryResponse       `json:"moderationHistory"`
}

// SellerResponse describes the submitting account.
type SellerResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Rating       string `json:"rating"`
	TotalAds     int    `json:"totalAds"`
	RegisteredAt string `json:"registeredAt"`
}

// HistoryResponse is one moderation history entry. Approvals carry a null
// reason.
type HistoryResponse struct {
	ID            int64                 `json:"id"`
	ModeratorID   int64                 `json:"moderatorId"`
	ModeratorName string                `json:"moderatorName"`
	Action        listing.HistoryAction `json:"action"`
	Reason        *string               `json:"reason"`
	Comment       string                `json:"comment"`
	Timestamp     string                `json:"timestamp"`
}

// ListResponse is the listing read response.
type ListResponse struct {
	Ads        []AdResponse       `json:"ads"`
	Pagination listing.Pagination `json:"pagination"`
}

// DecisionRequest is the body of reject and request-changes.
type DecisionRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toAdResponse(r listing.RecordDetail) AdResponse {
	ad := AdResponse{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Price:           r.Price,
		Category:        r.Category,
		CategoryID:      r.CategoryID,
		Status:          r.Status,
		Priority:        r.Priority,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
		Images:          r.Images,
		Characteristics: r.Characteristics,
		Seller: SellerResponse{
			ID:           r.Seller.ID,
			Name:         r.Seller.Name,
			Rating:       r.Seller.Rating,
			TotalAds:     r.Seller.TotalListings,
			RegisteredAt: formatTime(r.Seller.RegisteredAt),
		},
		ModerationHistory: make([]HistoryResponse, len(r.ModerationHistory)),
	}
	if ad.Images == nil {
		ad.Images = []string{}
	}
	// Newest first, as the backend reports it.
	n := len(r.ModerationHistory)
	for i, h := range r.ModerationHistory {
		hr := HistoryResponse{
			ID:            h.ID,
			ModeratorID:   h.ModeratorID,
			ModeratorName: h.ModeratorName,
			Action:        h.Action,
			Comment:       h.Comment,
			Timestamp:     formatTime(h.Timestamp),
		}
		if h.Reason != "" {
			reason := h.Reason
			hr.Reason = &reason
		}
		ad.ModerationHistory[n-1-i] = hr
	}
	return ad
}

// handleListAds returns one filtered, sorted page of records.
func (s *Server) handleListAds(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	crit := filter.DecodeValues(query)

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = listing.PageLimit
	}

	records, pagination := s.store.List(crit, limit)
	resp := ListResponse{
		Ads:        make([]AdResponse, len(records)),
		Pagination: pagination,
	}
	for i, rec := range records {
		resp.Ads[i] = toAdResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetAd returns a single record by ID.
func (s *Server) handleGetAd(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, found := s.store.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	}
	writeJSON(w, http.StatusOK, toAdResponse(rec))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, listing.ActionApprove)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, listing.ActionReject)
}

func (s *Server) handleRequestChanges(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, listing.ActionRequestChanges)
}

// decide applies a decision. Reject and request-changes require a reason.
func (s *Server) decide(w http.ResponseWriter, r *http.Request, action listing.Action) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	d := listing.Decision{Action: action}
	if action != listing.ActionApprove {
		var body DecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON with a reason")
			return
		}
		d.Reason = strings.TrimSpace(body.Reason)
		d.Comment = body.Comment
	}
	if err := d.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	err := s.store.Decide(id, d)
	switch {
	case err == nil:
	case errors.Is(err, listing.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		return
	default:
		s.logger.Error("failed to apply decision", "id", id, "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to apply decision")
		return
	}

	s.logger.Info("decision applied", "id", id, "action", action, "reason", d.Reason)
	rec, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "ok",
		"ad":      toAdResponse(rec),
	})
}

// handleStatsSummary returns the moderation report for ?period=.
func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	period := listing.StatsPeriod(r.URL.Query().Get("period"))
	switch period {
	case "", listing.PeriodToday, listing.PeriodWeek, listing.PeriodMonth:
	default:
		writeError(w, http.StatusBadRequest, "invalid_period", "period must be today, week or month")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Stats(period))
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Ad ID must be a number")
		return 0, false
	}
	return id, true
}
