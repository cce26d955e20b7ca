// Package filter maps listing criteria to and from the shareable address, and
// mediates live filter edits before they are committed.
package filter

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/wesm/modconsole/internal/listing"
)

// Address query keys.
const (
	keySearch     = "search"
	keyStatus     = "status[]"
	keyPriority   = "priority[]"
	keyCategoryID = "categoryId"
	keyMinPrice   = "minPrice"
	keyMaxPrice   = "maxPrice"
	keySortBy     = "sortBy"
	keySortOrder  = "sortOrder"
	keyPage       = "page"
)

// Decode parses an address query string into normalized criteria. It never
// fails: unknown keys, malformed numbers and unknown enum values are dropped.
// A leading '?' is accepted.
func Decode(rawQuery string) listing.Criteria {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		// ParseQuery keeps every pair it could parse alongside the error.
		if values == nil {
			return listing.DefaultCriteria()
		}
	}
	return DecodeValues(values)
}

// DecodeValues is Decode for already-parsed query values.
func DecodeValues(values url.Values) listing.Criteria {
	c := listing.DefaultCriteria()

	c.Search = first(values, keySearch)

	for _, s := range multi(values, "status") {
		st := listing.Status(s)
		for _, allowed := range listing.FilterStatuses {
			if st == allowed {
				c.Statuses = append(c.Statuses, st)
			}
		}
	}
	for _, s := range multi(values, "priority") {
		p := listing.Priority(s)
		for _, allowed := range listing.FilterPriorities {
			if p == allowed {
				c.Priorities = append(c.Priorities, p)
			}
		}
	}

	if v, ok := parseInt(first(values, keyCategoryID)); ok && v >= 0 {
		c.CategoryID = &v
	}
	if v, ok := parsePrice(first(values, keyMinPrice)); ok {
		c.MinPrice = &v
	}
	if v, ok := parsePrice(first(values, keyMaxPrice)); ok {
		c.MaxPrice = &v
	}
	c.SortBy = listing.SortField(first(values, keySortBy))
	c.SortOrder = listing.SortOrder(first(values, keySortOrder))
	if v, ok := parseInt(first(values, keyPage)); ok {
		c.Page = v
	}
	return c.Normalize()
}

// Encode serializes criteria into a minimal address query string. Absent
// fields and the first page are omitted; the limit is a constant and never
// encoded. Keys are sorted, so equal criteria encode identically.
func Encode(c listing.Criteria) string {
	return encodeValues(c, false).Encode()
}

// Fingerprint is the canonical cache key of a criteria snapshot. Unlike
// Encode it always includes the page and the limit.
func Fingerprint(c listing.Criteria) string {
	return encodeValues(c, true).Encode()
}

// ToParams builds the listing read parameters sent to the backend. Priority
// is applied client-side and is not sent.
func ToParams(c listing.Criteria) url.Values {
	c = c.Normalize()
	params := url.Values{}
	params.Set("page", strconv.Itoa(c.Page))
	params.Set("limit", strconv.Itoa(c.Limit))
	for _, s := range c.Statuses {
		params.Add("status", string(s))
	}
	if c.CategoryID != nil {
		params.Set("categoryId", strconv.Itoa(*c.CategoryID))
	}
	if c.MinPrice != nil {
		params.Set("minPrice", formatPrice(*c.MinPrice))
	}
	if c.MaxPrice != nil {
		params.Set("maxPrice", formatPrice(*c.MaxPrice))
	}
	if c.Search != "" {
		params.Set("search", c.Search)
	}
	if c.SortBy != listing.SortNone {
		params.Set("sortBy", string(c.SortBy))
	}
	if c.SortOrder != listing.OrderNone {
		params.Set("sortOrder", string(c.SortOrder))
	}
	return params
}

func encodeValues(c listing.Criteria, full bool) url.Values {
	c = c.Normalize()
	values := url.Values{}
	if c.Search != "" {
		values.Set(keySearch, c.Search)
	}
	for _, s := range c.Statuses {
		values.Add(keyStatus, string(s))
	}
	for _, p := range c.Priorities {
		values.Add(keyPriority, string(p))
	}
	if c.CategoryID != nil {
		values.Set(keyCategoryID, strconv.Itoa(*c.CategoryID))
	}
	if c.MinPrice != nil {
		values.Set(keyMinPrice, formatPrice(*c.MinPrice))
	}
	if c.MaxPrice != nil {
		values.Set(keyMaxPrice, formatPrice(*c.MaxPrice))
	}
	if c.SortBy != listing.SortNone {
		values.Set(keySortBy, string(c.SortBy))
	}
	if c.SortOrder != listing.OrderNone {
		values.Set(keySortOrder, string(c.SortOrder))
	}
	if full || c.Page != 1 {
		values.Set(keyPage, strconv.Itoa(c.Page))
	}
	if full {
		values.Set("limit", strconv.Itoa(c.Limit))
	}
	return values
}

// first returns the first non-empty value for key.
func first(values url.Values, key string) string {
	for _, v := range values[key] {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// multi collects array values written as name[]=a, name=a, or name=a,b.
func multi(values url.Values, name string) []string {
	var out []string
	for _, key := range []string{name + "[]", name} {
		for _, v := range values[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// formatPrice uses the shortest representation that parses back to the same
// float, which keeps Decode(Encode(c)) exact.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
