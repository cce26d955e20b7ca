// Package location models the navigable address of the listing view: the
// encoded criteria currently shown plus a back/forward history.
package location

import (
	"sync"

	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
)

// History is a browser-style address history. Entries are encoded query
// strings, so traversal restores the criteria from the address itself.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
}

// New starts a history at the given address query.
func New(initial string) *History {
	return &History{entries: []string{canonical(initial)}}
}

// Current returns the current address query.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Criteria decodes the current address.
func (h *History) Criteria() listing.Criteria {
	return filter.Decode(h.Current())
}

// Push records a new address, discarding any forward entries. Pushing the
// current address is a no-op. It reports whether the address changed.
func (h *History) Push(query string) bool {
	query = canonical(query)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[h.index] == query {
		return false
	}
	h.entries = append(h.entries[:h.index+1], query)
	h.index++
	return true
}

// Replace overwrites the current address without adding an entry.
func (h *History) Replace(query string) {
	query = canonical(query)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = query
}

// Back moves to the previous address and returns it.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return h.entries[0], false
	}
	h.index--
	return h.entries[h.index], true
}

// Forward moves to the next address and returns it.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == len(h.entries)-1 {
		return h.entries[h.index], false
	}
	h.index++
	return h.entries[h.index], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// canonical re-encodes query so equivalent addresses compare equal.
func canonical(query string) string {
	return filter.Encode(filter.Decode(query))
}
