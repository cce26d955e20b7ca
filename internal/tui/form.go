package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/modconsole/internal/listing"
)

// decisionForm collects the reason and comment for a reject or
// request-changes decision.
type decisionForm struct {
	id           int64 // 0 when the form targets the selection
	bulk         bool
	action       listing.Action
	reasonCursor int
	comment      textinput.Model
	err          error
	submitting   bool
}

func newDecisionForm(id int64, bulk bool) decisionForm {
	comment := textinput.New()
	comment.Placeholder = "comment (optional)"
	comment.CharLimit = 500
	comment.Width = 44
	return decisionForm{
		id:      id,
		bulk:    bulk,
		action:  listing.ActionReject,
		comment: comment,
	}
}

// decision builds the decision the form currently describes.
func (f decisionForm) decision() listing.Decision {
	reason := ""
	if f.reasonCursor >= 0 && f.reasonCursor < len(listing.Reasons) {
		reason = listing.Reasons[f.reasonCursor]
	}
	comment := strings.TrimSpace(f.comment.Value())
	if f.action == listing.ActionRequestChanges {
		return listing.RequestChanges(reason, comment)
	}
	return listing.Reject(reason, comment)
}

func (m Model) openDecisionForm(id int64, bulk bool) (tea.Model, tea.Cmd) {
	m.form = newDecisionForm(id, bulk)
	m.modal = modalDecision
	cmd := m.form.comment.Focus()
	return m, cmd
}

func (m Model) handleDecisionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.submitting {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.modal = modalNone
		m.form = decisionForm{}
		return m, nil
	case "tab", "shift+tab":
		if m.form.action == listing.ActionReject {
			m.form.action = listing.ActionRequestChanges
		} else {
			m.form.action = listing.ActionReject
		}
		return m, nil
	case "up":
		if m.form.reasonCursor > 0 {
			m.form.reasonCursor--
		}
		return m, nil
	case "down":
		if m.form.reasonCursor < len(listing.Reasons)-1 {
			m.form.reasonCursor++
		}
		return m, nil
	case "enter":
		return m.submitDecisionForm()
	}

	var cmd tea.Cmd
	m.form.comment, cmd = m.form.comment.Update(msg)
	return m, cmd
}

// submitDecisionForm validates the form and sends it. Validation errors keep
// the form open without a request.
func (m Model) submitDecisionForm() (tea.Model, tea.Cmd) {
	d := m.form.decision()
	if err := d.Validate(); err != nil {
		m.form.err = err
		return m, nil
	}

	m.form.err = nil
	if m.form.bulk {
		m.modal = modalNone
		m.form = decisionForm{}
		return m.startBulk(d)
	}
	m.form.submitting = true
	return m, m.decide(m.form.id, d, true)
}

// formErrorText renders a form error for display.
func formErrorText(err error) string {
	var de *listing.DecisionError
	if errors.As(err, &de) {
		return fmt.Sprintf("Failed: %v", de.Err)
	}
	return err.Error()
}

func (m Model) renderDecisionModal() string {
	f := m.form
	var sb strings.Builder

	target := fmt.Sprintf("record %d", f.id)
	if f.bulk {
		target = fmt.Sprintf("%d selected records", m.SelectionCount())
	}
	title := "Reject " + target
	if f.action == listing.ActionRequestChanges {
		title = "Request changes for " + target
	}
	sb.WriteString(m.styles.modalTitle.Render(title))
	sb.WriteString("\n\n")

	for i, r := range listing.Reasons {
		indicator := "○"
		if i == f.reasonCursor {
			indicator = "●"
		}
		fmt.Fprintf(&sb, " %s %s\n", indicator, r)
	}
	sb.WriteString("\n")
	sb.WriteString(f.comment.View())
	sb.WriteString("\n\n")

	switch {
	case f.submitting:
		sb.WriteString(m.spinnerIndicator() + " Submitting...\n\n")
	case f.err != nil:
		sb.WriteString(m.styles.errorText.Render(formErrorText(f.err)))
		sb.WriteString("\n\n")
	}
	sb.WriteString("[↑/↓] reason  [Tab] reject/changes  [Enter] submit  [Esc] cancel")
	return sb.String()
}
