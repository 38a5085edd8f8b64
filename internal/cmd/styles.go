package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/connection"
	"github.com/computehome/launcher/internal/protocol"
)

const (
	colorPrimary = "6" // Cyan
	colorSuccess = "2" // Green
	colorWarning = "3" // Yellow
	colorError   = "1" // Red
	colorMuted   = "8" // Dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary))

	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorError))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))
)

func renderStatus(s connection.Status) string {
	label := "● " + s.String()
	switch s {
	case connection.StatusConnected:
		return connectedStyle.Render(label)
	case connection.StatusConnecting:
		return pendingStyle.Render(label)
	case connection.StatusDisconnected:
		return errorStyle.Render(label)
	}
	return mutedStyle.Render(label)
}

var activityIcons = map[activity.Status]string{
	activity.Waiting:   "○",
	activity.Active:    "◐",
	activity.Failed:    "✗",
	activity.Succeeded: "✓",
}

// renderActivity returns one line per step under the scenario title, or an
// empty string when no scenario is shown.
func renderActivity(state *activity.State) string {
	if state == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(state.Title))
	if state.Message != "" {
		b.WriteString(" " + mutedStyle.Render(state.Message))
	}
	for _, a := range state.Activities {
		title := a.Title
		if title == "" {
			title = a.ID
		}
		line := fmt.Sprintf("  %s %s", activityIcons[a.Status], title)
		if a.Status == activity.Active && a.Progress > 0 {
			line += fmt.Sprintf(" (%d%%)", a.Progress)
		}
		switch a.Status {
		case activity.Succeeded:
			line = connectedStyle.Render(line)
		case activity.Active:
			line = pendingStyle.Render(line)
		case activity.Failed:
			line = errorStyle.Render(line)
		default:
			line = mutedStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func renderContainers(containers []protocol.Container) string {
	if len(containers) == 0 {
		return mutedStyle.Render("No containers")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Containers"))
	for _, c := range containers {
		line := fmt.Sprintf("  %s  %s", c.Title, mutedStyle.Render(string(c.Status)))
		if c.IsRunning() && c.URL != "" {
			line += "  " + connectedStyle.Render(c.URL)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}
