package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/damay/pkg/session"
)

const (
	userLabel = "Kamu"
	botLabel  = "Damay"
	// typingText accompanies the spinner while a reply is pending.
	typingText = "sedang mengetik..."
)

// renderTranscript draws the welcome message or the log, one block per
// message. spinner is the current spinner frame used for the placeholder.
func renderTranscript(s session.Snapshot, width int, md *markdownRenderer, spinner string) string {
	if len(s.Messages) == 0 {
		if s.Welcome == "" {
			return ""
		}
		return botLabelStyle.Render(botLabel) + "\n" + welcomeStyle.Width(maxInt(width-2, 10)).Render(s.Welcome)
	}

	blocks := make([]string, 0, len(s.Messages))
	for i, msg := range s.Messages {
		switch {
		case msg.IsPlaceholder():
			blocks = append(blocks, botLabelStyle.Render(botLabel)+"\n  "+spinner+" "+hintStyle.Render(typingText))
		case msg.Role == session.RoleUser:
			body := userTextStyle.Width(maxInt(width, 10)).Render(msg.Content)
			blocks = append(blocks, userLabelStyle.Render(userLabel)+"\n"+body)
		default:
			header := botLabelStyle.Render(botLabel)
			if i == s.RerollIndex {
				header += " " + hintStyle.Render("(ctrl+r: jawab ulang)")
			}
			blocks = append(blocks, header+"\n"+md.Render(msg.Content, width))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// renderChips lays out the recommended questions, highlighting the focused
// one. focus is -1 when the input has focus.
func renderChips(chips []string, focus, width int) string {
	if len(chips) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(chips))
	for i, c := range chips {
		style := chipStyle
		if i == focus {
			style = chipFocusedStyle
		}
		rendered = append(rendered, style.Render(fmt.Sprintf("%d. %s", i+1, c)))
	}

	// wrap chips onto rows that fit the width
	var rows []string
	var row []string
	rowWidth := 0
	for _, r := range rendered {
		w := lipgloss.Width(r)
		if len(row) > 0 && rowWidth+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, r)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
