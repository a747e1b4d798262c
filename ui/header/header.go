package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/ui/common"
	"github.com/deemkeen/glyptodon/util"
)

type Model struct {
	Width int
	Actor activitypub.Actor
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return renderHeader(m.Actor, m.Width)
}

func renderHeader(actor activitypub.Actor, width int) string {
	// Each box carries a border and padding, four chars of overhead per
	// box on top of the content width.
	overhead := 16
	availableWidth := width - overhead

	if availableWidth < 40 {
		availableWidth = 40
	}

	usernameWidth := availableWidth / 6
	atWidth := 1
	domainWidth := availableWidth / 3
	versionWidth := availableWidth - usernameWidth - atWidth - domainWidth

	username := lipgloss.
		NewStyle().
		SetString(actor.Username).
		Align(lipgloss.Left).
		Background(lipgloss.Color(common.COLOR_PURPLE)).
		Padding(1).
		Height(2).
		Width(usernameWidth).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	at := lipgloss.
		NewStyle().
		SetString("@").
		Background(lipgloss.NoColor{}).
		Foreground(lipgloss.Color(common.COLOR_MAGENTA)).
		Padding(1).
		Height(2).
		Width(atWidth).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	domain := lipgloss.
		NewStyle().
		SetString(actor.Domain).
		Background(lipgloss.Color(common.COLOR_MAGENTA)).
		Padding(1).
		Align(lipgloss.Left).
		Height(2).
		Width(domainWidth).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	version := lipgloss.
		NewStyle().
		SetString(util.GetNameAndVersion()).
		Width(versionWidth).
		Height(2).
		Background(lipgloss.Color(common.COLOR_GREY)).
		Padding(1).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		String()

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		username,
		at,
		domain,
		version,
	)
}
