package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 ₽"},
		{990, "990 ₽"},
		{12500, "12,500 ₽"},
		{1234567.5, "1,234,567.5 ₽"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Errorf("formatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{45, "45s"},
		{125, "2m 5s"},
		{9000, "2h 30m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "laptop", 10, "laptop"},
		{"ellipsis", "mountain bicycle", 10, "mountai..."},
		{"tiny width", "bicycle", 3, "bic"},
		{"newlines flattened", "two\nlines", 20, "two lines"},
		{"wide runes", "自転車を売ります", 7, "自転..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.in, tt.width); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abc" {
		t.Errorf("padRight truncation = %q", got)
	}

	forceColorProfile(t)
	styled := lipgloss.NewStyle().Bold(true).Render("hi")
	if w := lipgloss.Width(padRight(styled, 6)); w != 6 {
		t.Errorf("styled width = %d, want 6", w)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{"short", "one line", 20, []string{"one line"}},
		{"breaks at space", "the quick brown fox", 10, []string{"the quick", "brown fox"}},
		{"hard break", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"keeps paragraphs", "a\n\nb", 10, []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.in, tt.width)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("wrapText mismatch (-want +got):\n%s", diff)
			}
			for _, line := range got {
				if len([]rune(line)) > tt.width {
					t.Errorf("line %q exceeds width %d", line, tt.width)
				}
			}
		})
	}
}

func TestOverlayHelpersKeepANSI(t *testing.T) {
	forceColorProfile(t)
	s := lipgloss.NewStyle().Bold(true).Render("abcdef")
	if got := stripANSI(truncateToWidth(s, 3)); got != "abc" {
		t.Errorf("truncateToWidth = %q", got)
	}
	if got := stripANSI(skipToWidth(s, 4)); got != "ef" {
		t.Errorf("skipToWidth = %q", got)
	}
	if !strings.Contains(skipToWidth(s, 4), ansiStart) {
		t.Error("skipToWidth dropped styling")
	}
}
