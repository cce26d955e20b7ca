package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wesm/modconsole/internal/listing"
)

// Fixed listing column widths. The title column takes the rest.
const (
	colIndicator = 2
	colID        = 6
	colPrice     = 14
	colCategory  = 12
	colStatus    = 9
	colPriority  = 7
	colCreated   = 16
	colGaps      = 7
)

func (m Model) titleWidth() int {
	fixed := colIndicator + colID + colPrice + colCategory + colStatus + colPriority + colCreated + colGaps
	return max(m.width-fixed, 10)
}

// headerView renders the title bar and the filter summary line.
func (m Model) headerView() string {
	title := "modconsole"
	if m.version != "" {
		title += " " + m.version
	}
	address := m.sess.Address()
	if address == "" {
		address = "/"
	} else {
		address = "?" + address
	}
	bar := m.styles.titleBar.Render(padRight(title+" │ "+address, max(m.width-2, 1)))
	line := m.styles.stats.Render(padRight(m.filterSummary(), max(m.width-2, 1)))
	return bar + "\n" + line
}

// filterSummary describes the filter draft, showing focused inputs in place.
func (m Model) filterSummary() string {
	filters := m.sess.Filters()
	d := filters.Draft()
	var parts []string

	switch {
	case m.focus == inputSearch:
		parts = append(parts, "/"+m.searchInput.View())
	case d.Search != "":
		parts = append(parts, fmt.Sprintf("search %q", d.Search))
	}
	if len(d.Statuses) > 0 {
		names := make([]string, len(d.Statuses))
		for i, s := range d.Statuses {
			names[i] = string(s)
		}
		parts = append(parts, "status: "+strings.Join(names, ","))
	}
	if len(d.Priorities) > 0 {
		names := make([]string, len(d.Priorities))
		for i, p := range d.Priorities {
			names[i] = string(p)
		}
		parts = append(parts, "priority: "+strings.Join(names, ","))
	}
	if d.CategoryID != nil {
		parts = append(parts, "category: "+listing.CategoryLabel(*d.CategoryID))
	}
	switch {
	case m.focus == inputMinPrice || m.focus == inputMaxPrice:
		parts = append(parts, "price: "+m.minPriceInput.View()+" - "+m.maxPriceInput.View())
	case d.MinPrice != nil || d.MaxPrice != nil:
		lo, hi := "any", "any"
		if d.MinPrice != nil {
			lo = formatPrice(*d.MinPrice)
		}
		if d.MaxPrice != nil {
			hi = formatPrice(*d.MaxPrice)
		}
		parts = append(parts, fmt.Sprintf("price: %s - %s", lo, hi))
	}
	if d.SortBy != listing.SortNone {
		arrow := "↓"
		if d.SortOrder == listing.OrderAsc {
			arrow = "↑"
		}
		parts = append(parts, fmt.Sprintf("sort: %s %s", d.SortBy, arrow))
	}

	if len(parts) == 0 {
		parts = append(parts, "all records")
	}
	summary := strings.Join(parts, "  ")
	if filters.Pending() {
		summary += "  (applying...)"
	}
	return summary
}

// listView renders the listing table and the info line.
func (m Model) listView() string {
	var sb strings.Builder

	tw := m.titleWidth()
	header := fmt.Sprintf("%s%s %s %s %s %s %s %s",
		strings.Repeat(" ", colIndicator),
		padRight("ID", colID),
		padRight("Title", tw),
		fmt.Sprintf("%*s", colPrice, "Price"),
		padRight("Category", colCategory),
		padRight("Status", colStatus),
		padRight("Prio", colPriority),
		padRight("Created", colCreated),
	)
	sb.WriteString(m.styles.tableHeader.Render(padRight(header, m.width)))
	sb.WriteString("\n")
	sb.WriteString(m.styles.separator.Render(strings.Repeat("─", m.width)))
	sb.WriteString("\n")

	var body []string
	switch {
	case m.err != nil:
		body = append(body, m.styles.errorText.Render(padRight(fmt.Sprintf("Error loading listing: %v", m.err), m.width)))
	case m.loading && len(m.records) == 0:
		body = append(body, m.styles.loading.Render(padRight(m.spinnerIndicator()+" Loading...", m.width)))
	case len(m.records) == 0:
		body = append(body, m.styles.normalRow.Render(padRight("No records match the current filters", m.width)))
	default:
		end := min(m.scrollOffset+m.pageSize, len(m.records))
		for i := m.scrollOffset; i < end; i++ {
			body = append(body, m.renderRow(i, tw))
		}
	}

	for _, line := range body {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for i := len(body); i < m.pageSize; i++ {
		sb.WriteString(m.styles.normalRow.Render(strings.Repeat(" ", m.width)))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderInfoLine())
	return sb.String()
}

func (m Model) renderRow(i, titleWidth int) string {
	r := m.records[i]
	selected := m.sess.Selection().Contains(r.ID)

	indicator := []rune("  ")
	if i == m.cursor {
		indicator[0] = '▶'
	}
	if selected {
		indicator[1] = '✓'
	}
	prio := ""
	if r.Priority == listing.PriorityUrgent {
		prio = "urgent"
	}
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.Local().Format("2006-01-02 15:04")
	}

	line := fmt.Sprintf("%s%s %s %s %s %s %s %s",
		string(indicator),
		padRight(fmt.Sprintf("%d", r.ID), colID),
		padRight(truncateRunes(r.Title, titleWidth), titleWidth),
		fmt.Sprintf("%*s", colPrice, truncateRunes(formatPrice(r.Price), colPrice)),
		padRight(truncateRunes(r.Category, colCategory), colCategory),
		padRight(statusLabel(r.Status), colStatus),
		padRight(prio, colPriority),
		padRight(created, colCreated),
	)
	line = padRight(line, m.width)

	switch {
	case i == m.cursor:
		return m.styles.cursorRow.Render(line)
	case selected:
		return m.styles.selectedRow.Render(line)
	case i%2 == 1:
		return m.styles.altRow.Render(line)
	default:
		return m.styles.normalRow.Render(line)
	}
}

// detailPageSize is the number of content lines in the detail view. It has
// no table header or separator, so it gains two lines over the listing.
func (m Model) detailPageSize() int {
	return m.pageSize + 2
}

func (m *Model) clampDetailScroll() {
	maxScroll := max(len(m.buildDetailLines())-m.detailPageSize(), 0)
	if m.detailScroll > maxScroll {
		m.detailScroll = maxScroll
	}
	if m.detailScroll < 0 {
		m.detailScroll = 0
	}
}

// buildDetailLines lays out the displayed record.
func (m Model) buildDetailLines() []string {
	d := m.detail
	if d == nil {
		return nil
	}
	label := func(name string) string { return fmt.Sprintf("%-10s", name+":") }

	var lines []string
	lines = append(lines, d.Title)
	lines = append(lines, "")
	lines = append(lines, label("ID")+fmt.Sprintf("%d", d.ID))
	lines = append(lines, label("Price")+formatPrice(d.Price))
	lines = append(lines, label("Category")+d.Category)
	status := statusLabel(d.Status)
	if st, ok := m.styles.status[d.Status]; ok {
		status = st.Render(status)
	}
	lines = append(lines, label("Status")+status)
	prio := string(d.Priority)
	if d.Priority == listing.PriorityUrgent {
		prio = m.styles.urgent.Render(prio)
	}
	lines = append(lines, label("Priority")+prio)
	if !d.CreatedAt.IsZero() {
		lines = append(lines, label("Created")+d.CreatedAt.Local().Format("Mon, 02 Jan 2006 15:04"))
	}
	if !d.UpdatedAt.IsZero() {
		lines = append(lines, label("Updated")+d.UpdatedAt.Local().Format("Mon, 02 Jan 2006 15:04"))
	}
	if len(d.Images) > 0 {
		lines = append(lines, label("Images")+fmt.Sprintf("%d", len(d.Images)))
	}

	lines = append(lines, "")
	sepWidth := min(m.width-2, 80)
	if sepWidth < 1 {
		sepWidth = 40
	}
	lines = append(lines, strings.Repeat("─", sepWidth))
	lines = append(lines, "")

	desc := strings.ReplaceAll(d.Description, "\r\n", "\n")
	if strings.TrimSpace(desc) == "" {
		desc = "(No description)"
	}
	lines = append(lines, wrapText(desc, m.width-2)...)

	if len(d.Characteristics) > 0 {
		lines = append(lines, "", "Characteristics")
		width := 0
		for _, c := range d.Characteristics {
			width = max(width, lipgloss.Width(c.Label))
		}
		for _, c := range d.Characteristics {
			lines = append(lines, "  "+padRight(c.Label, width)+"  "+c.Value)
		}
	}

	lines = append(lines, "", "Seller")
	s := d.Seller
	lines = append(lines, fmt.Sprintf("  %s  rating %s  %d listings", s.Name, s.Rating, s.TotalListings))
	if !s.RegisteredAt.IsZero() {
		lines = append(lines, "  registered "+s.RegisteredAt.Local().Format("02 Jan 2006"))
	}

	lines = append(lines, "", "Moderation history")
	if len(d.ModerationHistory) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, h := range d.ModerationHistory {
		entry := fmt.Sprintf("  %s  %s %s", h.Timestamp.Local().Format("2006-01-02 15:04"), h.ModeratorName, historyLabel(h.Action))
		if h.Reason != "" {
			entry += ": " + h.Reason
		}
		lines = append(lines, entry)
		if h.Comment != "" {
			for _, cl := range wrapText(h.Comment, max(m.width-8, 10)) {
				lines = append(lines, "      "+cl)
			}
		}
	}
	return lines
}

// detailView renders the displayed record.
func (m Model) detailView() string {
	var sb strings.Builder
	pageSize := m.detailPageSize()

	var visible []string
	switch {
	case m.err != nil:
		visible = []string{m.styles.errorText.Render(padRight(fmt.Sprintf("Error loading record: %v", m.err), m.width))}
	case m.detail == nil:
		visible = []string{m.styles.loading.Render(padRight(m.spinnerIndicator()+" Loading record...", m.width))}
	default:
		lines := m.buildDetailLines()
		start := min(max(m.detailScroll, 0), max(len(lines)-1, 0))
		end := min(start+pageSize, len(lines))
		for _, line := range lines[start:end] {
			visible = append(visible, m.styles.normalRow.Render(padRight(line, m.width)))
		}
	}

	for _, line := range visible {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for i := len(visible); i < pageSize; i++ {
		sb.WriteString(m.styles.normalRow.Render(strings.Repeat(" ", m.width)))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderInfoLine())
	return sb.String()
}

// footerView renders key hints, the page position and the selection count.
func (m Model) footerView() string {
	var hints []string
	switch m.level {
	case levelDetail:
		hints = []string{"←/→ prev/next", "a approve", "d decide", "Space select", "Esc back", "? help"}
	default:
		hints = []string{"↑/↓", "Enter open", "Space select", "/ search", "1-3 status", "A approve sel", "D decide sel", "? help"}
	}

	var right []string
	if n := m.SelectionCount(); n > 0 {
		right = append(right, fmt.Sprintf("[%d selected]", n))
	}
	if m.level == levelDetail && m.detail != nil {
		right = append(right, fmt.Sprintf("record %d", m.detail.ID))
	} else if p := m.pagination; p.TotalPages > 0 {
		right = append(right, fmt.Sprintf("page %d/%d · %d records", p.CurrentPage, p.TotalPages, p.TotalItems))
	}

	left := strings.Join(hints, " │ ")
	rightStr := strings.Join(right, " ")
	width := max(m.width-2, 1)
	gap := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if gap < 1 {
		left = truncateToWidth(left, max(width-lipgloss.Width(rightStr)-1, 0))
		gap = max(width-lipgloss.Width(left)-lipgloss.Width(rightStr), 1)
	}
	return m.styles.footer.Render(padRight(left+strings.Repeat(" ", gap)+rightStr, width))
}

func (m Model) spinnerIndicator() string {
	if m.spinnerFrame < len(spinnerFrames) {
		return spinnerFrames[m.spinnerFrame]
	}
	return spinnerFrames[0]
}

// renderInfoLine renders the line above the footer: bulk progress, a flash
// message, a loading spinner, or blank.
func (m Model) renderInfoLine() string {
	width := max(m.width-2, 1)
	switch {
	case m.bulkRunning:
		progress := fmt.Sprintf("%s %s %d/%d...", m.spinnerIndicator(), m.bulkAction, m.sess.Bulk().Completed(), m.bulkTotal)
		return m.styles.flash.Render(padRight(" "+progress, m.width))
	case m.flashMessage != "":
		return m.styles.flash.Render(padRight(" "+m.flashMessage, m.width))
	case m.loading:
		indicator := m.styles.spinner.Render(m.spinnerIndicator())
		return m.styles.stats.Render(padRight(strings.Repeat(" ", width-1)+indicator, width))
	}
	return m.styles.stats.Render(strings.Repeat(" ", width))
}

// rawHelpLines is the help modal content. The first line is the title.
var rawHelpLines = []string{
	"Keyboard Shortcuts",
	"",
	"Listing",
	"  ↑/k, ↓/j    Move cursor",
	"  Enter       Open record",
	"  Space       Toggle selection",
	"  a           Select every record on the page",
	"  Esc         Clear selection",
	"  n/p         Next/previous page",
	"  b/f         Back/forward through addresses",
	"  r           Reload",
	"",
	"Filters",
	"  /           Search titles",
	"  1/2/3       Toggle pending/approved/rejected",
	"  u           Toggle urgent only",
	"  c           Next category",
	"  m/M         Edit min/max price",
	"  o           Next sort order",
	"  x           Clear all filters",
	"",
	"Decisions",
	"  A           Approve selection",
	"  D           Reject or request changes for selection",
	"  e           Export selection to CSV",
	"",
	"Record",
	"  ←/→         Previous/next record",
	"  a           Approve",
	"  d           Reject or request changes",
	"  Esc         Back to listing",
	"",
	"  t           Toggle light/dark theme",
	"  q           Quit",
}

func (m Model) renderHelpModal() string {
	maxVisible := max(min(len(rawHelpLines), m.height-6), 1)
	rendered := make([]string, maxVisible)
	for i, line := range rawHelpLines[:maxVisible] {
		if i == 0 {
			rendered[i] = m.styles.modalTitle.Render(line)
		} else {
			rendered[i] = line
		}
	}
	return strings.Join(rendered, "\n")
}

func (m Model) renderResultModal() string {
	return m.styles.modalTitle.Render("Result") + "\n\n" +
		m.modalResult + "\n\n" +
		"Press any key to continue"
}

func (m Model) renderQuitConfirmModal() string {
	return m.styles.modalTitle.Render("Quit?") + "\n\n" +
		"Are you sure you want to quit?\n\n" +
		"[Y] Yes    [N] No"
}

// overlayModal renders the active modal centered over background.
func (m Model) overlayModal(background string) string {
	var content string
	switch m.modal {
	case modalDecision:
		content = m.renderDecisionModal()
	case modalResult:
		content = m.renderResultModal()
	case modalHelp:
		content = m.renderHelpModal()
	case modalQuitConfirm:
		content = m.renderQuitConfirmModal()
	}
	if content == "" {
		return background
	}

	modal := m.styles.modal.Render(content)
	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := max((len(bgLines)-len(modalLines))/2, 0)
	modalWidth := lipgloss.Width(modal)
	leftPadding := max((m.width-modalWidth)/2, 0)

	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]
		bgWidth := lipgloss.Width(bgLine)

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < bgWidth {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}
	return strings.Join(bgLines, "\n")
}
