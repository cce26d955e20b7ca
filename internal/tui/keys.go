package tui

import (
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/keys"
	"github.com/wesm/modconsole/internal/listing"
)

// intent is what a scoped key binding asks the model to do. Handlers run
// inside Registry.Dispatch, which cannot return a new model, so they record
// the intent and Update applies it.
type intent int

const (
	intentNone intent = iota
	intentNext
	intentPrevious
	intentApprove
	intentDecide
	intentFocusSearch
	intentBack
)

type intentBox struct {
	pending intent
}

func (b *intentBox) set(i intent) keys.Handler {
	return func() { b.pending = i }
}

func (b *intentBox) take() intent {
	i := b.pending
	b.pending = intentNone
	return i
}

func (b *intentBox) listingBindings() keys.Bindings {
	return keys.Bindings{
		keys.Slash: b.set(intentFocusSearch),
	}
}

func (b *intentBox) detailBindings() keys.Bindings {
	return keys.Bindings{
		keys.Right:  b.set(intentNext),
		keys.Left:   b.set(intentPrevious),
		"a":         b.set(intentApprove),
		"d":         b.set(intentDecide),
		keys.Escape: b.set(intentBack),
	}
}

// sortCycle is the order the sort key steps through.
var sortCycle = []struct {
	field listing.SortField
	order listing.SortOrder
}{
	{listing.SortNone, listing.OrderNone},
	{listing.SortCreatedAt, listing.OrderDesc},
	{listing.SortCreatedAt, listing.OrderAsc},
	{listing.SortPrice, listing.OrderDesc},
	{listing.SortPrice, listing.OrderAsc},
	{listing.SortPriority, listing.OrderDesc},
	{listing.SortPriority, listing.OrderAsc},
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	if m.focus != inputNone {
		// "/" jumps to search from the price fields.
		if key == keys.Slash && m.focus != inputSearch && m.dispatch(key) {
			return m.applyIntent()
		}
		return m.handleInputKeys(msg)
	}
	if m.dispatch(key) {
		return m.applyIntent()
	}
	if m.level == levelDetail {
		return m.handleDetailKeys(msg)
	}
	return m.handleListKeys(msg)
}

// dispatch routes key through the session's key scopes.
func (m Model) dispatch(key string) bool {
	m.intents.pending = intentNone
	return m.sess.Keys().Dispatch(key)
}

func (m Model) applyIntent() (tea.Model, tea.Cmd) {
	i := m.intents.take()
	switch i {
	case intentFocusSearch:
		if m.level == levelDetail {
			mm, _ := m.leaveDetail()
			m = mm.(Model)
		}
		return m.focusInput(inputSearch)

	case intentNext, intentPrevious:
		if m.detail == nil {
			return m, nil
		}
		direction := "next"
		if i == intentPrevious {
			direction = "previous"
		}
		m.detailRequestID++
		return m, m.stepRecord(direction)

	case intentApprove:
		if m.detail == nil {
			return m, nil
		}
		return m, m.decide(m.detail.ID, listing.Approve(), false)

	case intentDecide:
		if m.detail == nil {
			return m, nil
		}
		return m.openDecisionForm(m.detail.ID, false)

	case intentBack:
		return m.leaveDetail()
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.detailScope != nil {
		m.detailScope.Close()
	}
	m.listScope.Close()
	return m, tea.Quit
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filters := m.sess.Filters()

	switch msg.String() {
	case "q":
		m.modal = modalQuitConfirm
		return m, nil
	case "?":
		m.modal = modalHelp
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
	case "down", "j":
		if m.cursor < len(m.records)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
	case "home":
		m.cursor = 0
		m.scrollOffset = 0
	case "end":
		m.cursor = max(len(m.records)-1, 0)
		m.ensureCursorVisible()

	case "enter":
		if rec, ok := m.currentRecord(); ok {
			return m.enterDetail(rec.ID)
		}

	case " ":
		if rec, ok := m.currentRecord(); ok {
			m.sess.Selection().Toggle(rec.ID)
		}
	case "a":
		for _, r := range m.records {
			m.sess.Selection().Add(r.ID)
		}
	case "esc":
		m.sess.Selection().Clear()

	case "1", "2", "3":
		i := int(msg.String()[0] - '1')
		filters.SetStatuses(toggle(filters.Draft().Statuses, listing.FilterStatuses[i])...)
	case "u":
		filters.SetPriorities(toggle(filters.Draft().Priorities, listing.PriorityUrgent)...)
	case "c":
		filters.SetCategory(nextCategory(filters.Draft().CategoryID))
	case "o":
		d := filters.Draft()
		next := sortCycle[0]
		for i, s := range sortCycle {
			if s.field == d.SortBy && s.order == d.SortOrder {
				next = sortCycle[(i+1)%len(sortCycle)]
				break
			}
		}
		filters.SetSort(next.field, next.order)
	case "m":
		return m.focusInput(inputMinPrice)
	case "M":
		return m.focusInput(inputMaxPrice)
	case "x":
		filters.ClearAll()

	case "n", "pgdown":
		if m.pagination.CurrentPage < m.pagination.TotalPages {
			m.cursor = 0
			m.sess.SetPage(m.pagination.CurrentPage + 1)
		}
	case "p", "pgup":
		if m.pagination.CurrentPage > 1 {
			m.cursor = 0
			m.sess.SetPage(m.pagination.CurrentPage - 1)
		}
	case "b":
		if !m.sess.Back() {
			return m.showFlash("No earlier address")
		}
	case "f":
		if !m.sess.Forward() {
			return m.showFlash("No later address")
		}
	case "r":
		m.sess.Cache().Invalidate(cache.AllListings())
		cmd := m.startListing()
		return m, cmd

	case "A":
		if m.SelectionCount() == 0 {
			return m.showFlash("No records selected")
		}
		return m.startBulk(listing.Approve())
	case "D":
		if m.SelectionCount() == 0 {
			return m.showFlash("No records selected")
		}
		return m.openDecisionForm(0, true)
	case "e":
		ids := m.sess.Selection().Members()
		if len(ids) == 0 {
			return m.showFlash("No records selected")
		}
		return m, m.exportSelection(ids)
	case "t":
		return m.toggleTheme()
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.modal = modalQuitConfirm
	case "?":
		m.modal = modalHelp
	case "up", "k":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "down", "j":
		m.detailScroll++
		m.clampDetailScroll()
	case " ":
		if m.detail != nil {
			m.sess.Selection().Toggle(m.detail.ID)
		}
	case "t":
		return m.toggleTheme()
	}
	return m, nil
}

func (m Model) startBulk(d listing.Decision) (tea.Model, tea.Cmd) {
	m.bulkRunning = true
	m.bulkTotal = m.SelectionCount()
	m.bulkAction = d.Action
	spin := m.startSpinner()
	return m, tea.Batch(m.runBulk(d), spin)
}

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	theme := m.sess.ToggleTheme()
	m.styles = newStyles(theme)
	if m.onThemeChange != nil {
		m.onThemeChange(theme)
	}
	return m, nil
}

// focusInput gives keyboard focus to a filter field.
func (m Model) focusInput(f inputField) (tea.Model, tea.Cmd) {
	m.searchInput.Blur()
	m.minPriceInput.Blur()
	m.maxPriceInput.Blur()
	m.focus = f
	var cmd tea.Cmd
	switch f {
	case inputSearch:
		cmd = m.searchInput.Focus()
	case inputMinPrice:
		cmd = m.minPriceInput.Focus()
	case inputMaxPrice:
		cmd = m.maxPriceInput.Focus()
	}
	return m, cmd
}

// handleInputKeys edits the focused filter field. Every edit goes to the
// filter controller, which commits after the debounce window.
func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filters := m.sess.Filters()

	switch msg.String() {
	case "enter", "esc", "tab":
		m.searchInput.Blur()
		m.minPriceInput.Blur()
		m.maxPriceInput.Blur()
		m.focus = inputNone
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case inputSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
		filters.SetSearch(m.searchInput.Value())
	case inputMinPrice:
		m.minPriceInput, cmd = m.minPriceInput.Update(msg)
		if p, ok := parsePrice(m.minPriceInput.Value()); ok {
			filters.SetMinPrice(p)
		}
	case inputMaxPrice:
		m.maxPriceInput, cmd = m.maxPriceInput.Update(msg)
		if p, ok := parsePrice(m.maxPriceInput.Value()); ok {
			filters.SetMaxPrice(p)
		}
	}
	return m, cmd
}

// syncInputs copies the active criteria into fields that do not have focus.
func (m *Model) syncInputs() {
	if m.focus != inputSearch {
		m.searchInput.SetValue(m.criteria.Search)
	}
	if m.focus != inputMinPrice {
		m.minPriceInput.SetValue(formatPriceInput(m.criteria.MinPrice))
	}
	if m.focus != inputMaxPrice {
		m.maxPriceInput.SetValue(formatPriceInput(m.criteria.MaxPrice))
	}
}

// parsePrice reads a price field. An empty field clears the bound; text
// that is not a non-negative number is ignored.
func parsePrice(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}

func formatPriceInput(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// toggle adds v to set or removes it.
func toggle[T comparable](set []T, v T) []T {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}

// nextCategory steps through the category table, then back to none.
func nextCategory(cur *int) *int {
	if cur == nil {
		id := listing.Categories[0].ID
		return &id
	}
	for i, c := range listing.Categories {
		if c.ID == *cur && i+1 < len(listing.Categories) {
			id := listing.Categories[i+1].ID
			return &id
		}
	}
	return nil
}

func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalDecision:
		return m.handleDecisionKeys(msg)
	case modalQuitConfirm:
		switch msg.String() {
		case "y", "Y":
			return m.quit()
		case "n", "N", "esc", "q":
			m.modal = modalNone
		}
		return m, nil
	default:
		// Help and result modals close on any key.
		m.modal = modalNone
		m.modalResult = ""
		return m, nil
	}
}
