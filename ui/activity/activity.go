package activity

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui/common"
)

var (
	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_PURPLE))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
			Bold(true).
			Width(10)

	actorStyle = lipgloss.NewStyle()

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_GREY)).
			Italic(true)
)

const (
	itemsPerPage = 10
	historyDepth = 100
)

type Model struct {
	State *state.FederationState
	Log   *log.Logger

	Records []domain.ActivityRecord
	Offset  int
	Width   int
	Height  int
}

func InitialModel(st *state.FederationState, logger *log.Logger, width, height int) Model {
	return Model{
		State:  st,
		Log:    logger,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadRecords(m.State, m.Log)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsLoadedMsg:
		m.Records = msg.records
		m.Offset = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if len(m.Records) > 0 && m.Offset < len(m.Records)-1 {
				m.Offset++
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("activity log (%d)", len(m.Records))))
	s.WriteString("\n\n")

	if len(m.Records) == 0 {
		s.WriteString(emptyStyle.Render("No archived activities yet.\nLikes, boosts and unknown activity types land here."))
		return s.String()
	}

	end := m.Offset + itemsPerPage
	if end > len(m.Records) {
		end = len(m.Records)
	}

	for _, rec := range m.Records[m.Offset:end] {
		s.WriteString("  ")
		s.WriteString(timeStyle.Render(rec.ReceivedAt.Format("02.01.2006 15:04")))
		s.WriteString("  ")
		s.WriteString(typeStyle.Render(rec.Type))
		s.WriteString(actorStyle.Render(rec.ActorURI))
		s.WriteString("\n")
	}

	if end < len(m.Records) {
		s.WriteString("\n")
		s.WriteString(emptyStyle.Render(fmt.Sprintf("... and %d more", len(m.Records)-end)))
		s.WriteString("\n")
	}

	return s.String()
}

// recordsLoadedMsg delivers the archived activities to the pane
type recordsLoadedMsg struct {
	records []domain.ActivityRecord
}

func loadRecords(st *state.FederationState, logger *log.Logger) tea.Cmd {
	return func() tea.Msg {
		records, err := st.RecentActivities(historyDepth)
		if err != nil {
			logger.Warn("Could not load activity archive", "err", err)
			return recordsLoadedMsg{records: []domain.ActivityRecord{}}
		}
		return recordsLoadedMsg{records: records}
	}
}
