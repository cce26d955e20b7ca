package listing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Criteria
		want Criteria
	}{
		{
			name: "zero value gets first page",
			in:   Criteria{},
			want: Criteria{Page: 1, Limit: PageLimit},
		},
		{
			name: "swaps inverted price range",
			in:   Criteria{MinPrice: ptr(500.0), MaxPrice: ptr(100.0), Page: 2},
			want: Criteria{MinPrice: ptr(100.0), MaxPrice: ptr(500.0), Page: 2, Limit: PageLimit},
		},
		{
			name: "drops negative price and category",
			in:   Criteria{MinPrice: ptr(-1.0), CategoryID: ptr(-3)},
			want: Criteria{Page: 1, Limit: PageLimit},
		},
		{
			name: "canonical status order without duplicates or drafts",
			in:   Criteria{Statuses: []Status{StatusRejected, StatusDraft, StatusPending, StatusRejected}},
			want: Criteria{Statuses: []Status{StatusPending, StatusRejected}, Page: 1, Limit: PageLimit},
		},
		{
			name: "blank search is absent",
			in:   Criteria{Search: "   ", Page: 3},
			want: Criteria{Page: 3, Limit: PageLimit},
		},
		{
			name: "unknown sort dropped",
			in:   Criteria{SortBy: "title", SortOrder: "sideways"},
			want: Criteria{Page: 1, Limit: PageLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.in.Normalize()); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWithPageDoesNotMutate(t *testing.T) {
	c := Criteria{Statuses: []Status{StatusPending}, Page: 1, Limit: PageLimit}
	next := c.WithPage(4)
	if c.Page != 1 {
		t.Errorf("original page changed to %d", c.Page)
	}
	if next.Page != 4 {
		t.Errorf("next page = %d, want 4", next.Page)
	}
	next.Statuses[0] = StatusApproved
	if c.Statuses[0] != StatusPending {
		t.Error("WithPage shares the status slice with the original")
	}
}

func TestCriteriaEqual(t *testing.T) {
	a := Criteria{Statuses: []Status{StatusRejected, StatusPending}, MinPrice: ptr(10.0)}
	b := Criteria{Statuses: []Status{StatusPending, StatusRejected}, MinPrice: ptr(10.0), Page: 1}
	if !a.Equal(b) {
		t.Error("expected criteria to be equal after normalization")
	}
	if a.Equal(b.WithPage(2)) {
		t.Error("different pages should not be equal")
	}
}

func TestDecisionValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{"approve without reason", Approve(), false},
		{"reject with reason", Reject("Other", ""), false},
		{"reject without reason", Reject("", "comment"), true},
		{"request changes whitespace reason", RequestChanges("  ", ""), true},
		{"unknown action", Decision{Action: "ban"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestDecisionErrorUnwraps(t *testing.T) {
	err := error(&DecisionError{ID: 7, Action: ActionReject, Err: ErrServerRejected})
	if !errors.Is(err, ErrServerRejected) {
		t.Error("DecisionError should unwrap to its cause")
	}
	if Kind(err) != ErrServerRejected {
		t.Errorf("Kind() = %v, want ErrServerRejected", Kind(err))
	}
	var de *DecisionError
	if !errors.As(err, &de) || de.ID != 7 {
		t.Errorf("errors.As did not recover the record id")
	}
}

func TestCharacteristicsPreserveOrder(t *testing.T) {
	data := []byte(`{"Model":"X200","Condition":"used","Year":2019,"Color":"black"}`)
	var cs Characteristics
	if err := json.Unmarshal(data, &cs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := Characteristics{
		{"Model", "X200"},
		{"Condition", "used"},
		{"Year", "2019"},
		{"Color", "black"},
	}
	if diff := cmp.Diff(want, cs); diff != "" {
		t.Errorf("characteristics mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"Model":"X200","Condition":"used","Year":"2019","Color":"black"}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestCharacteristicsRejectsArray(t *testing.T) {
	var cs Characteristics
	if err := json.Unmarshal([]byte(`["a"]`), &cs); err == nil {
		t.Error("expected error for non-object characteristics")
	}
}

func TestSortHistory(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := RecordDetail{ModerationHistory: []HistoryEntry{
		{ID: 3, Timestamp: base.Add(2 * time.Hour)},
		{ID: 1, Timestamp: base},
		{ID: 2, Timestamp: base.Add(time.Hour)},
	}}
	d.SortHistory()
	for i, h := range d.ModerationHistory {
		if h.ID != int64(i+1) {
			t.Fatalf("history[%d].ID = %d, want %d", i, h.ID, i+1)
		}
	}
}

func TestFilterByPriority(t *testing.T) {
	records := []RecordSummary{
		{ID: 1, Priority: PriorityNormal},
		{ID: 2, Priority: PriorityUrgent},
		{ID: 3, Priority: PriorityUrgent},
	}
	got := FilterByPriority(records, []Priority{PriorityUrgent})
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("FilterByPriority = %+v", got)
	}
	if len(FilterByPriority(records, nil)) != 3 {
		t.Error("empty priority set should keep every record")
	}
}
