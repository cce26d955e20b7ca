package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/wesm/modconsole/internal/listing"
)

var pricePrinter = message.NewPrinter(language.English)

// formatPrice renders a price with digit grouping, e.g. "12,500 ₽".
func formatPrice(p float64) string {
	return pricePrinter.Sprintf("%v ₽", number.Decimal(p, number.MaxFractionDigits(2)))
}

// formatDuration renders an average review time in seconds.
func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", seconds)
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// statusLabel returns the display label for a status.
func statusLabel(s listing.Status) string {
	switch s {
	case listing.StatusPending:
		return "Pending"
	case listing.StatusApproved:
		return "Approved"
	case listing.StatusRejected:
		return "Rejected"
	case listing.StatusDraft:
		return "Draft"
	default:
		return string(s)
	}
}

// historyLabel returns the display label for a moderation history action.
func historyLabel(a listing.HistoryAction) string {
	switch a {
	case listing.HistoryApproved:
		return "approved"
	case listing.HistoryRejected:
		return "rejected"
	case listing.HistoryRequestChanges:
		return "requested changes"
	default:
		return string(a)
	}
}

// padRight pads a string with spaces to fill width terminal cells.
// Uses lipgloss.Width so ANSI sequences and wide characters are measured
// correctly.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateRunes truncates a string to fit within maxWidth terminal cells.
// Newlines and tabs are flattened first so a title cannot break the row.
func truncateRunes(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")

	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// wrapText wraps text to fit within width terminal cells, breaking at the
// last space when one is available.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}

	var result []string
	for _, line := range strings.Split(text, "\n") {
		if runewidth.StringWidth(line) <= width {
			result = append(result, line)
			continue
		}

		runes := []rune(line)
		for len(runes) > 0 {
			currentWidth := 0
			breakAt := 0
			lastSpace := -1
			for i, r := range runes {
				rw := runewidth.RuneWidth(r)
				if currentWidth+rw > width {
					break
				}
				currentWidth += rw
				breakAt = i + 1
				if r == ' ' {
					lastSpace = i
				}
			}
			if breakAt == 0 {
				// A single rune wider than the line.
				breakAt = 1
			}
			if breakAt < len(runes) && lastSpace > 0 {
				breakAt = lastSpace + 1
			}
			result = append(result, strings.TrimRight(string(runes[:breakAt]), " "))
			runes = runes[breakAt:]
		}
	}
	return result
}

// truncateToWidth truncates an ANSI string to maxWidth visual columns.
func truncateToWidth(s string, maxWidth int) string {
	return ansi.Truncate(s, maxWidth, "")
}

// skipToWidth returns the suffix of s starting after skipWidth visual columns.
func skipToWidth(s string, skipWidth int) string {
	return ansi.Cut(s, skipWidth, 10000)
}
