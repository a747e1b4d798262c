package following

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui/common"
)

var (
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_GREEN)).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_GREY)).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_GREEN))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_RED))
)

const (
	itemsPerPage  = 10
	followTimeout = 30 * time.Second
)

type Model struct {
	State    *state.FederationState
	Delivery *activitypub.Delivery
	Resolver *activitypub.Resolver
	Log      *log.Logger

	Input        textinput.Model
	InputFocused bool
	Following    []string
	Selected     int
	Width        int
	Height       int
	Status       string
	Error        string
}

func InitialModel(st *state.FederationState, delivery *activitypub.Delivery, resolver *activitypub.Resolver, logger *log.Logger, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "user@mastodon.social"
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		State:     st,
		Delivery:  delivery,
		Resolver:  resolver,
		Log:       logger,
		Input:     ti,
		Following: []string{},
		Width:     width,
		Height:    height,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadFollowing(m.State))
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case followingLoadedMsg:
		m.Following = msg.following
		if m.Selected >= len(m.Following) {
			m.Selected = max(len(m.Following)-1, 0)
		}
		return m, nil

	case followResultMsg:
		if msg.err != nil {
			m.Log.Warn("Follow from console failed", "target", msg.target, "err", msg.err)
			m.Error = fmt.Sprintf("Follow failed: %v", msg.err)
			m.Status = ""
			return m, clearStatusAfter(5 * time.Second)
		}
		m.Status = fmt.Sprintf("✓ Sent follow request to %s", msg.target)
		m.Error = ""
		return m, tea.Batch(loadFollowing(m.State), clearStatusAfter(3*time.Second))

	case unfollowResultMsg:
		if msg.err != nil {
			m.Log.Warn("Unfollow from console failed", "target", msg.target, "err", msg.err)
			m.Error = fmt.Sprintf("Unfollow failed: %v", msg.err)
			m.Status = ""
			return m, clearStatusAfter(5 * time.Second)
		}
		m.Status = fmt.Sprintf("✓ Unfollowed %s", msg.target)
		m.Error = ""
		return m, tea.Batch(loadFollowing(m.State), clearStatusAfter(3*time.Second))

	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		if m.InputFocused {
			switch msg.String() {
			case "enter":
				handle := strings.TrimSpace(m.Input.Value())
				if handle == "" {
					m.Error = "Enter a handle like user@domain or an actor URL"
					return m, nil
				}
				m.Status = fmt.Sprintf("Following %s...", handle)
				m.Error = ""
				m.Input.SetValue("")
				return m, sendFollow(m.Delivery, m.Resolver, handle)
			case "esc":
				m.InputFocused = false
				m.Input.Blur()
				return m, nil
			}
			m.Input, cmd = m.Input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Following)-1 {
				m.Selected++
			}
		case "f", "/":
			m.InputFocused = true
			return m, m.Input.Focus()
		case "u", "enter":
			if len(m.Following) == 0 || m.Selected >= len(m.Following) {
				return m, nil
			}
			target := m.Following[m.Selected]
			m.Status = fmt.Sprintf("Unfollowing %s...", target)
			m.Error = ""
			return m, sendUnfollow(m.Delivery, target)
		}
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("following (%d)", len(m.Following))))
	s.WriteString("\n\n")

	prompt := "  follow: "
	if m.InputFocused {
		prompt = "→ follow: "
	}
	s.WriteString(prompt + m.Input.View())
	s.WriteString("\n\n")

	if len(m.Following) == 0 {
		s.WriteString(emptyStyle.Render("Not following anyone yet. Press f and enter a handle!"))
		s.WriteString("\n")
	} else {
		displayCount := len(m.Following)
		if displayCount > itemsPerPage {
			displayCount = itemsPerPage
		}
		for i := 0; i < displayCount; i++ {
			if i == m.Selected && !m.InputFocused {
				s.WriteString("→ " + selectedStyle.Render(m.Following[i]))
			} else {
				s.WriteString("  " + itemStyle.Render(m.Following[i]))
			}
			s.WriteString("\n")
		}
		if len(m.Following) > itemsPerPage {
			s.WriteString(emptyStyle.Render(fmt.Sprintf("... and %d more", len(m.Following)-itemsPerPage)))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	if m.Status != "" {
		s.WriteString(statusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(errorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	return s.String()
}

// followingLoadedMsg delivers the current following list
type followingLoadedMsg struct {
	following []string
}

// followResultMsg reports an outbound follow attempt
type followResultMsg struct {
	target string
	err    error
}

// unfollowResultMsg reports an outbound unfollow attempt
type unfollowResultMsg struct {
	target string
	err    error
}

// clearStatusMsg wipes the status line after a delay
type clearStatusMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func loadFollowing(st *state.FederationState) tea.Cmd {
	return func() tea.Msg {
		return followingLoadedMsg{following: st.Following()}
	}
}

// sendFollow resolves the handle and delivers a Follow activity. The
// result comes back as a message so the model is never mutated from
// another goroutine.
func sendFollow(delivery *activitypub.Delivery, resolver *activitypub.Resolver, handle string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), followTimeout)
		defer cancel()

		actorURI, err := resolver.ResolveHandle(ctx, handle)
		if err != nil {
			return followResultMsg{target: handle, err: err}
		}
		if err := delivery.SendFollow(ctx, actorURI); err != nil {
			return followResultMsg{target: handle, err: err}
		}
		return followResultMsg{target: handle}
	}
}

func sendUnfollow(delivery *activitypub.Delivery, targetIRI string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), followTimeout)
		defer cancel()

		if err := delivery.SendUnfollow(ctx, targetIRI); err != nil {
			return unfollowResultMsg{target: targetIRI, err: err}
		}
		return unfollowResultMsg{target: targetIRI}
	}
}
