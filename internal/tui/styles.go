package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/session"
)

// palette is the set of colors a theme is built from.
type palette struct {
	base    lipgloss.Color
	alt     lipgloss.Color
	cursor  lipgloss.Color
	bar     lipgloss.Color
	text    lipgloss.Color
	muted   lipgloss.Color
	flash   lipgloss.Color
	urgent  lipgloss.Color
	ok      lipgloss.Color
	bad     lipgloss.Color
	pending lipgloss.Color
}

var (
	lightPalette = palette{
		base:    "#ffffff",
		alt:     "#f0f0f0",
		cursor:  "#e0e0e0",
		bar:     "#d8d8d8",
		text:    "#000000",
		muted:   "#555555",
		flash:   "#996600",
		urgent:  "#c0392b",
		ok:      "#1e7b34",
		bad:     "#b03a2e",
		pending: "#7a5c00",
	}
	darkPalette = palette{
		base:    "#000000",
		alt:     "#181818",
		cursor:  "#282828",
		bar:     "#333333",
		text:    "#ffffff",
		muted:   "#999999",
		flash:   "#ffcc00",
		urgent:  "#ff6b5b",
		ok:      "#6fdc8c",
		bad:     "#ff8389",
		pending: "#f1c21b",
	}
)

// styles holds every lipgloss style the views use. It is rebuilt when the
// theme changes.
type styles struct {
	titleBar    lipgloss.Style
	stats       lipgloss.Style
	spinner     lipgloss.Style
	tableHeader lipgloss.Style
	separator   lipgloss.Style
	cursorRow   lipgloss.Style
	selectedRow lipgloss.Style
	normalRow   lipgloss.Style
	altRow      lipgloss.Style
	footer      lipgloss.Style
	errorText   lipgloss.Style
	loading     lipgloss.Style
	modal       lipgloss.Style
	modalTitle  lipgloss.Style
	flash       lipgloss.Style
	label       lipgloss.Style
	urgent      lipgloss.Style
	status      map[listing.Status]lipgloss.Style
}

func newStyles(theme session.Theme) styles {
	p := lightPalette
	if theme == session.ThemeDark {
		p = darkPalette
	}
	base := lipgloss.NewStyle().Background(p.base).Foreground(p.text)

	return styles{
		titleBar: lipgloss.NewStyle().
			Bold(true).
			Background(p.bar).
			Foreground(p.text).
			Padding(0, 1),
		stats:       base.Foreground(p.muted).Padding(0, 1),
		spinner:     base.Bold(true),
		tableHeader: base.Bold(true),
		separator:   base.Faint(true),
		cursorRow:   lipgloss.NewStyle().Background(p.cursor).Foreground(p.text),
		selectedRow: base.Bold(true),
		normalRow:   base,
		altRow:      lipgloss.NewStyle().Background(p.alt).Foreground(p.text),
		footer:      base.Foreground(p.muted).Padding(0, 1),
		errorText:   base.Bold(true).Foreground(p.bad),
		loading:     base.Italic(true),
		modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(p.base).
			Foreground(p.text),
		modalTitle: lipgloss.NewStyle().Bold(true),
		flash:      base.Italic(true).Foreground(p.flash),
		label:      base.Foreground(p.muted),
		urgent:     lipgloss.NewStyle().Bold(true).Foreground(p.urgent),
		status: map[listing.Status]lipgloss.Style{
			listing.StatusPending:  lipgloss.NewStyle().Foreground(p.pending),
			listing.StatusApproved: lipgloss.NewStyle().Foreground(p.ok),
			listing.StatusRejected: lipgloss.NewStyle().Foreground(p.bad),
			listing.StatusDraft:    lipgloss.NewStyle().Foreground(p.muted),
		},
	}
}
