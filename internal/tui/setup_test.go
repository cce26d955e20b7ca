package tui

import (
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/listing/listingtest"
	"github.com/wesm/modconsole/internal/session"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

var testNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Test Fixtures
// =============================================================================

func summary(id int64, title string, price float64) listing.RecordSummary {
	return listing.RecordSummary{
		ID:         id,
		Title:      title,
		Price:      price,
		Category:   "Electronics",
		CategoryID: 0,
		Status:     listing.StatusPending,
		Priority:   listing.PriorityNormal,
		CreatedAt:  testNow.Add(-time.Duration(id) * time.Hour),
	}
}

func detailOf(s listing.RecordSummary) *listing.RecordDetail {
	return &listing.RecordDetail{
		RecordSummary: s,
		Description:   "Works fine, minor scratches.",
		Characteristics: listing.Characteristics{
			{Label: "Condition", Value: "Used"},
			{Label: "Brand", Value: "Acme"},
		},
		Seller: listing.Seller{ID: 9, Name: "Ivan", Rating: "4.8", TotalListings: 12},
	}
}

// testEnv exposes the collaborators behind a built model.
type testEnv struct {
	mock  *listingtest.MockBackend
	sess  *session.Session
	clock *clock.Fake
	dir   string
	theme []session.Theme
}

// TestModelBuilder helps construct Model instances for testing.
type TestModelBuilder struct {
	records    []listing.RecordSummary
	details    map[int64]*listing.RecordDetail
	pagination *listing.Pagination
	width      int
	height     int
	address    string
	theme      session.Theme
	skipLoad   bool
}

func NewBuilder() *TestModelBuilder {
	return &TestModelBuilder{
		width:   120,
		height:  20,
		details: make(map[int64]*listing.RecordDetail),
	}
}

// WithRecords sets the listing page. Each record also gets a detail.
func (b *TestModelBuilder) WithRecords(recs ...listing.RecordSummary) *TestModelBuilder {
	b.records = recs
	for _, r := range recs {
		b.details[r.ID] = detailOf(r)
	}
	return b
}

func (b *TestModelBuilder) WithDetail(d *listing.RecordDetail) *TestModelBuilder {
	b.details[d.ID] = d
	return b
}

func (b *TestModelBuilder) WithPagination(p listing.Pagination) *TestModelBuilder {
	b.pagination = &p
	return b
}

func (b *TestModelBuilder) WithSize(width, height int) *TestModelBuilder {
	b.width = width
	b.height = height
	return b
}

func (b *TestModelBuilder) WithAddress(q string) *TestModelBuilder {
	b.address = q
	return b
}

func (b *TestModelBuilder) WithTheme(theme session.Theme) *TestModelBuilder {
	b.theme = theme
	return b
}

// WithoutLoad leaves the model in its initial loading state.
func (b *TestModelBuilder) WithoutLoad() *TestModelBuilder {
	b.skipLoad = true
	return b
}

func (b *TestModelBuilder) Build(t *testing.T) (Model, *testEnv) {
	t.Helper()

	pagination := listing.Pagination{
		CurrentPage:  1,
		TotalPages:   1,
		TotalItems:   len(b.records),
		ItemsPerPage: listing.PageLimit,
	}
	if b.pagination != nil {
		pagination = *b.pagination
	}
	env := &testEnv{
		mock: &listingtest.MockBackend{
			Page:    &listing.Page{Records: b.records, Pagination: pagination},
			Records: b.details,
		},
		clock: clock.NewFake(testNow),
		dir:   t.TempDir(),
	}
	env.sess = session.New(env.mock, session.Options{
		Address: b.address,
		Clock:   env.clock,
		Theme:   b.theme,
		Logger:  testLogger(),
	})
	t.Cleanup(env.sess.Close)

	m := New(env.sess, Options{
		Version:   "test123",
		ExportDir: env.dir,
		Logger:    testLogger(),
		OnThemeChange: func(theme session.Theme) {
			env.theme = append(env.theme, theme)
		},
	})
	m, _ = sendMsg(t, m, tea.WindowSizeMsg{Width: b.width, Height: b.height})
	if !b.skipLoad {
		m, _ = sendMsg(t, m, m.loadListing()())
	}
	return m, env
}

// =============================================================================
// Helpers
// =============================================================================

// sendKey sends a key message to the model and returns the updated model.
func sendKey(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(k)
	return newM.(Model), cmd
}

// sendMsg sends any tea.Msg through Update and returns the concrete Model.
func sendMsg(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(msg)
	return newM.(Model), cmd
}

// typeText sends each rune of s as a key press.
func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = sendKey(t, m, key(r))
	}
	return m
}

// findMsg runs cmd, expanding batches, and returns the first message of type
// T it produces. Commands that block (ticks, change waits) run in their own
// goroutines and are abandoned.
func findMsg[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	found := make(chan T, 1)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			switch msg := c().(type) {
			case tea.BatchMsg:
				for _, inner := range msg {
					run(inner)
				}
			case T:
				select {
				case found <- msg:
				default:
				}
			}
		}()
	}
	run(cmd)

	select {
	case msg := <-found:
		return msg
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("command produced no %T", zero)
		return zero
	}
}

// assertModal checks that the model is in the expected modal state
func assertModal(t *testing.T, m Model, expected modalType) {
	t.Helper()
	if m.modal != expected {
		t.Errorf("expected modal %v, got %v", expected, m.modal)
	}
}

// assertLevel checks that the model is at the expected view level
func assertLevel(t *testing.T, m Model, expected viewLevel) {
	t.Helper()
	if m.level != expected {
		t.Errorf("expected level %v, got %v", expected, m.level)
	}
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func keyEnter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func keyEsc() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyEscape} }
func keyTab() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyTab} }
func keyDown() tea.KeyMsg  { return tea.KeyMsg{Type: tea.KeyDown} }
func keyLeft() tea.KeyMsg  { return tea.KeyMsg{Type: tea.KeyLeft} }
func keyRight() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRight} }

// openDetail enters the detail view for the record under the cursor and
// delivers its load result.
func openDetail(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := sendKey(t, m, keyEnter())
	assertLevel(t, m, levelDetail)
	m, _ = sendMsg(t, m, findMsg[recordLoadedMsg](t, cmd))
	if m.detail == nil {
		t.Fatalf("detail not loaded: err=%v", m.err)
	}
	return m
}
