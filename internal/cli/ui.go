package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/seatwise/internal/condition"
	"github.com/julianstephens/seatwise/internal/decision"
)

var (
	availableStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	waitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
)

// codeStyle picks the colour of a decision code: green for anything the user
// can act on, amber for waiting states and red for blocks.
func codeStyle(code decision.Code) lipgloss.Style {
	switch code {
	case decision.BookItButton, decision.ConfirmBookIt, decision.AlreadyBooked, decision.ConfirmCancel:
		return availableStyle
	case decision.BookOnWaitingList, decision.OnWaitingList, decision.AskForConfirmation, decision.PriceIsSet:
		return waitStyle
	default:
		return blockedStyle
	}
}

// RenderDecision formats an evaluation result for the terminal.
func RenderDecision(res condition.Result) string {
	var b strings.Builder
	b.WriteString(codeStyle(res.Code).Render(string(res.Code)))
	if res.Explanation != "" {
		b.WriteString("  ")
		b.WriteString(res.Explanation)
	}
	var details []string
	if res.ConditionID != 0 {
		details = append(details, fmt.Sprintf("condition %d", res.ConditionID))
	}
	if res.CampaignID != "" {
		details = append(details, "campaign "+res.CampaignID)
	}
	if res.Err != nil {
		details = append(details, "error: "+res.Err.Error())
	}
	if len(details) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  " + strings.Join(details, ", ")))
	}
	return b.String()
}

// Confirm asks a yes/no question unless AssumeYes is set.
func (c *Context) Confirm(title, description string) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeBase()).Run()
	if err != nil {
		return false, fmt.Errorf("interactive form error: %w", err)
	}
	return ok, nil
}
