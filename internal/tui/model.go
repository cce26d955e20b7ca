// Package tui provides the terminal moderation console.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/modconsole/internal/export"
	"github.com/wesm/modconsole/internal/keys"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/moderation"
	"github.com/wesm/modconsole/internal/session"
)

// viewLevel is the mounted view.
type viewLevel int

const (
	levelList viewLevel = iota
	levelDetail
)

// modalType is the overlay shown above the mounted view.
type modalType int

const (
	modalNone modalType = iota
	modalDecision
	modalResult
	modalHelp
	modalQuitConfirm
)

// inputField is the text field that has keyboard focus, if any.
type inputField int

const (
	inputNone inputField = iota
	inputSearch
	inputMinPrice
	inputMaxPrice
)

// Options configures the console.
type Options struct {
	Version string
	// ExportDir is where CSV exports are written. Defaults to the working
	// directory.
	ExportDir string
	// OnThemeChange is called after the reviewer toggles the theme.
	OnThemeChange func(session.Theme)
	Logger        *slog.Logger
}

// Model is the Bubble Tea model of the console.
type Model struct {
	sess     *session.Session
	exporter *export.Exporter
	logger   *slog.Logger

	version       string
	exportDir     string
	onThemeChange func(session.Theme)
	styles        styles

	// Criteria change notifications from the session, coalesced.
	changes chan struct{}

	// Key scopes. The listing scope lives as long as the model; the detail
	// scope exists only while the detail view is mounted.
	intents     *intentBox
	listScope   *keys.Scope
	detailScope *keys.Scope

	level viewLevel

	// Listing
	records      []listing.RecordSummary
	pagination   listing.Pagination
	criteria     listing.Criteria
	cursor       int
	scrollOffset int

	// Detail
	detail       *listing.RecordDetail
	detailScroll int

	// Inputs
	focus         inputField
	searchInput   textinput.Model
	minPriceInput textinput.Model
	maxPriceInput textinput.Model

	// Modal state
	modal       modalType
	modalResult string
	form        decisionForm

	// Bulk run in flight
	bulkRunning bool
	bulkTotal   int
	bulkAction  listing.Action

	// Terminal dimensions
	width    int
	height   int
	pageSize int

	// Loading state
	loading       bool
	err           error
	spinnerFrame  int
	spinnerActive bool

	// Request tracking to ignore stale async results
	listRequestID   uint64
	detailRequestID uint64

	flashMessage string

	quitting bool
}

// New creates the console model over sess.
func New(sess *session.Session, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	search := textinput.New()
	search.Placeholder = "title contains..."
	search.CharLimit = 200
	search.Width = 40
	minPrice := textinput.New()
	minPrice.Placeholder = "min"
	minPrice.CharLimit = 12
	minPrice.Width = 12
	maxPrice := textinput.New()
	maxPrice.Placeholder = "max"
	maxPrice.CharLimit = 12
	maxPrice.Width = 12

	m := Model{
		sess:          sess,
		exporter:      export.NewExporter(sess.Cache()).WithLogger(logger),
		logger:        logger,
		version:       opts.Version,
		exportDir:     exportDir,
		onThemeChange: opts.OnThemeChange,
		styles:        newStyles(sess.Theme()),
		changes:       make(chan struct{}, 1),
		intents:       &intentBox{},
		criteria:      sess.Criteria(),
		pageSize:      listing.PageLimit,
		loading:       true,
		spinnerActive: true,
		searchInput:   search,
		minPriceInput: minPrice,
		maxPriceInput: maxPrice,
	}
	m.syncInputs()

	changes := m.changes
	sess.Subscribe(func(listing.Criteria) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.listScope = sess.Keys().Register("listing", m.intents.listingBindings())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadListing(),
		waitForChange(m.changes),
		spinnerTick(),
	)
}

// listingLoadedMsg is sent when a listing page is loaded.
type listingLoadedMsg struct {
	result    *session.ListingResult
	err       error
	requestID uint64
}

// criteriaChangedMsg is sent when the session's active criteria change or
// a bulk run asks for a refresh.
type criteriaChangedMsg struct{}

// recordLoadedMsg is sent when a record detail is loaded.
type recordLoadedMsg struct {
	detail    *listing.RecordDetail
	err       error
	requestID uint64
	// direction is set for next/previous navigation.
	direction string
}

// decisionDoneMsg is sent when a single decision completes.
type decisionDoneMsg struct {
	outcome  moderation.Outcome
	fromForm bool
}

// bulkDoneMsg is sent when a bulk run completes.
type bulkDoneMsg struct {
	result *moderation.BulkResult
	err    error
}

// exportDoneMsg is sent when a CSV export completes.
type exportDoneMsg struct {
	stats export.ExportStats
}

// flashClearMsg clears the flash message.
type flashClearMsg struct{}

// spinnerTickMsg advances the spinner animation.
type spinnerTickMsg struct{}

// spinnerFrames are braille dots used for the loading indicator.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerInterval is the spinner animation frame interval.
const spinnerInterval = 80 * time.Millisecond

// flashDuration is how long flash messages are displayed.
const flashDuration = 4 * time.Second

// loadListing fetches the page for the session's active criteria.
func (m Model) loadListing() tea.Cmd {
	requestID := m.listRequestID
	sess := m.sess
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = listingLoadedMsg{err: fmt.Errorf("listing panic: %v", r), requestID: requestID}
			}
		}()

		res, err := sess.FetchListing(context.Background())
		return listingLoadedMsg{result: res, err: err, requestID: requestID}
	}
}

// waitForChange blocks until the session reports a criteria change.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return criteriaChangedMsg{}
	}
}

// loadRecord opens record id in the detail view.
func (m Model) loadRecord(id int64) tea.Cmd {
	requestID := m.detailRequestID
	sess := m.sess
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = recordLoadedMsg{err: fmt.Errorf("record panic: %v", r), requestID: requestID}
			}
		}()

		detail, err := sess.OpenRecord(context.Background(), id)
		return recordLoadedMsg{detail: detail, err: err, requestID: requestID}
	}
}

// stepRecord opens the record after (next) or before (previous) the
// displayed one.
func (m Model) stepRecord(direction string) tea.Cmd {
	requestID := m.detailRequestID
	sess := m.sess
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = recordLoadedMsg{err: fmt.Errorf("record panic: %v", r), requestID: requestID, direction: direction}
			}
		}()

		ctx := context.Background()
		var detail *listing.RecordDetail
		var err error
		if direction == "next" {
			detail, err = sess.NextRecord(ctx)
		} else {
			detail, err = sess.PreviousRecord(ctx)
		}
		return recordLoadedMsg{detail: detail, err: err, requestID: requestID, direction: direction}
	}
}

// decide applies d to record id.
func (m Model) decide(id int64, d listing.Decision, fromForm bool) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return decisionDoneMsg{outcome: sess.Decide(context.Background(), id, d), fromForm: fromForm}
	}
}

// runBulk applies d to the selection.
func (m Model) runBulk(d listing.Decision) tea.Cmd {
	sess := m.sess
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = bulkDoneMsg{err: fmt.Errorf("bulk panic: %v", r)}
			}
		}()

		res, err := sess.DecideSelection(context.Background(), d)
		return bulkDoneMsg{result: res, err: err}
	}
}

// exportSelection writes the selected records to a timestamped CSV file.
func (m Model) exportSelection(ids []int64) tea.Cmd {
	exporter := m.exporter
	path := filepath.Join(m.exportDir, fmt.Sprintf("moderation-%s.csv", time.Now().Format("20060102-150405")))
	return func() tea.Msg {
		return exportDoneMsg{stats: exporter.WriteFile(context.Background(), path, ids)}
	}
}

// spinnerTick returns a command that fires a spinnerTickMsg after the spinner interval.
func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner returns a spinnerTick command if the spinner isn't already
// running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	m.spinnerFrame = 0
	return spinnerTick()
}

// startListing marks the listing as loading and returns the fetch command.
func (m *Model) startListing() tea.Cmd {
	m.listRequestID++
	m.loading = true
	return tea.Batch(m.loadListing(), m.startSpinner())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		// title (1) + filter line (1) + table header (1) + separator (1) + info (1) + footer (1)
		m.pageSize = max(m.height-6, 1)
		m.ensureCursorVisible()
		return m, nil

	case criteriaChangedMsg:
		m.criteria = m.sess.Criteria()
		m.syncInputs()
		cmd := m.startListing()
		return m, tea.Batch(cmd, waitForChange(m.changes))

	case listingLoadedMsg:
		if msg.requestID != m.listRequestID {
			return m, nil
		}
		if errors.Is(msg.err, session.ErrSuperseded) || errors.Is(msg.err, session.ErrClosed) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.criteria = msg.result.Criteria
		m.records = msg.result.Page.Records
		m.pagination = msg.result.Page.Pagination
		if m.cursor >= len(m.records) {
			m.cursor = max(len(m.records)-1, 0)
		}
		m.ensureCursorVisible()
		return m, nil

	case recordLoadedMsg:
		if msg.requestID != m.detailRequestID {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			if msg.direction != "" && errors.Is(msg.err, listing.ErrNotFound) {
				return m.showFlash(fmt.Sprintf("No %s record", msg.direction))
			}
			if msg.direction != "" {
				return m.showFlash(fmt.Sprintf("Error: %v", msg.err))
			}
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.detail = msg.detail
		m.detailScroll = 0
		return m, nil

	case decisionDoneMsg:
		return m.handleDecisionDone(msg)

	case bulkDoneMsg:
		m.bulkRunning = false
		if msg.err != nil {
			return m.showFlash(fmt.Sprintf("Bulk %s failed: %v", m.bulkAction, msg.err))
		}
		m.modal = modalResult
		m.modalResult = msg.result.Summary()
		return m, nil

	case exportDoneMsg:
		m.modal = modalResult
		m.modalResult = export.FormatExportResult(msg.stats)
		return m, nil

	case flashClearMsg:
		m.flashMessage = ""
		return m, nil

	case spinnerTickMsg:
		if m.loading || m.bulkRunning {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
			return m, spinnerTick()
		}
		m.spinnerActive = false
		return m, nil
	}

	return m, nil
}

// handleDecisionDone applies a single decision's outcome. A failure from the
// decision form keeps the form open with the error.
func (m Model) handleDecisionDone(msg decisionDoneMsg) (tea.Model, tea.Cmd) {
	out := msg.outcome
	if !out.OK() {
		if msg.fromForm && m.modal == modalDecision {
			m.form.submitting = false
			m.form.err = out.Err
			return m, nil
		}
		return m.showFlash(fmt.Sprintf("Error: %v", out.Err))
	}

	if msg.fromForm {
		m.modal = modalNone
		m.form = decisionForm{}
	}
	if out.Record != nil && m.level == levelDetail && m.detail != nil && m.detail.ID == out.ID {
		m.detail = out.Record
	}
	if out.RefreshErr != nil {
		m.logger.Warn("refresh after decision failed", "id", out.ID, "error", out.RefreshErr)
	}

	var cmds []tea.Cmd
	cmds = append(cmds, m.startListing())
	m2, flash := m.showFlash(fmt.Sprintf("Record %d: %s", out.ID, out.Decision.Action))
	cmds = append(cmds, flash)
	return m2, tea.Batch(cmds...)
}

// showFlash displays a temporary message.
func (m Model) showFlash(message string) (tea.Model, tea.Cmd) {
	m.flashMessage = message
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// enterDetail mounts the detail view for record id.
func (m Model) enterDetail(id int64) (tea.Model, tea.Cmd) {
	m.level = levelDetail
	m.detail = nil
	m.detailScroll = 0
	m.err = nil
	m.loading = true
	m.detailRequestID++
	if m.detailScope == nil || !m.detailScope.Active() {
		m.detailScope = m.sess.Keys().Register("detail", m.intents.detailBindings())
	}
	spin := m.startSpinner()
	return m, tea.Batch(m.loadRecord(id), spin)
}

// leaveDetail unmounts the detail view and returns to the listing.
func (m Model) leaveDetail() (tea.Model, tea.Cmd) {
	if m.detailScope != nil {
		m.detailScope.Close()
		m.detailScope = nil
	}
	m.sess.CloseRecord()
	m.level = levelList
	m.detail = nil
	m.err = nil
	m.detailRequestID++
	m.loading = false
	return m, nil
}

// ensureCursorVisible keeps the cursor inside the visible window.
func (m *Model) ensureCursorVisible() {
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.pageSize > 0 && m.cursor >= m.scrollOffset+m.pageSize {
		m.scrollOffset = m.cursor - m.pageSize + 1
	}
}

// currentRecord returns the record under the cursor.
func (m Model) currentRecord() (listing.RecordSummary, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return listing.RecordSummary{}, false
	}
	return m.records[m.cursor], true
}

// SelectionCount returns the number of selected records.
func (m Model) SelectionCount() int {
	return m.sess.Selection().Size()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	switch m.level {
	case levelDetail:
		body = m.detailView()
	default:
		body = m.listView()
	}
	out := fmt.Sprintf("%s\n%s\n%s", m.headerView(), body, m.footerView())
	if m.modal != modalNone {
		return m.overlayModal(out)
	}
	return out
}
