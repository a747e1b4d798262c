package followers

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui/common"
)

var (
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_GREY)).
			Italic(true)
)

const itemsPerPage = 10

type Model struct {
	State     *state.FederationState
	Followers []string
	Offset    int
	Width     int
	Height    int
}

func InitialModel(st *state.FederationState, width, height int) Model {
	return Model{
		State:     st,
		Followers: []string{},
		Offset:    0,
		Width:     width,
		Height:    height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadFollowers(m.State)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case followersLoadedMsg:
		m.Followers = msg.followers
		m.Offset = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if len(m.Followers) > 0 && m.Offset < len(m.Followers)-1 {
				m.Offset++
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("followers (%d)", len(m.Followers))))
	s.WriteString("\n\n")

	if len(m.Followers) == 0 {
		s.WriteString(emptyStyle.Render("No followers yet. Share your handle to get followed!"))
		return s.String()
	}

	end := m.Offset + itemsPerPage
	if end > len(m.Followers) {
		end = len(m.Followers)
	}

	for _, follower := range m.Followers[m.Offset:end] {
		s.WriteString(itemStyle.Render("• " + follower))
		s.WriteString("\n")
	}

	if end < len(m.Followers) {
		s.WriteString("\n")
		s.WriteString(emptyStyle.Render(fmt.Sprintf("... and %d more", len(m.Followers)-end)))
		s.WriteString("\n")
	}

	return s.String()
}

// followersLoadedMsg delivers the follower list to the pane
type followersLoadedMsg struct {
	followers []string
}

func loadFollowers(st *state.FederationState) tea.Cmd {
	return func() tea.Msg {
		return followersLoadedMsg{followers: st.Followers()}
	}
}
