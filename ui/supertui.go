package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui/activity"
	"github.com/deemkeen/glyptodon/ui/common"
	"github.com/deemkeen/glyptodon/ui/followers"
	"github.com/deemkeen/glyptodon/ui/following"
	"github.com/deemkeen/glyptodon/ui/header"
	"github.com/deemkeen/glyptodon/ui/overview"
)

var focusedModelStyle = lipgloss.NewStyle().
	Align(lipgloss.Top, lipgloss.Top).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)

// Deps are the running services the admin console reads from and acts
// on. The console never owns state, it is a remote control for the
// server process.
type Deps struct {
	Actor    activitypub.Actor
	Keys     *keystore.KeyStore
	State    *state.FederationState
	Dir      *activitypub.Directory
	Delivery *activitypub.Delivery
	Resolver *activitypub.Resolver
	Log      *log.Logger
}

type MainModel struct {
	width  int
	height int
	state  common.SessionState

	headerModel    header.Model
	overviewModel  overview.Model
	followersModel followers.Model
	followingModel following.Model
	activityModel  activity.Model
}

func NewModel(deps Deps, width int, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	return MainModel{
		width:          width,
		height:         height,
		state:          common.OverviewView,
		headerModel:    header.Model{Width: width, Actor: deps.Actor},
		overviewModel:  overview.InitialModel(deps.Dir, deps.Keys, deps.State, width, height),
		followersModel: followers.InitialModel(deps.State, width, height),
		followingModel: following.InitialModel(deps.State, deps.Delivery, deps.Resolver, deps.Log, width, height),
		activityModel:  activity.InitialModel(deps.State, deps.Log, width, height),
	}
}

func (m MainModel) Init() tea.Cmd {
	return m.overviewModel.Init()
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		return m, nil

	case common.SessionState:
		m.state = msg
		return m, m.viewInitCmd(m.state)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// The following view needs q for typing handles
			if !m.typingInInput() {
				return m, tea.Quit
			}
		case "tab":
			m.state = nextView(m.state)
			cmds = append(cmds, m.viewInitCmd(m.state))
		case "shift+tab":
			m.state = prevView(m.state)
			cmds = append(cmds, m.viewInitCmd(m.state))
		case "r":
			// Refresh reloads the focused view from the live services
			if !m.typingInInput() {
				cmds = append(cmds, m.viewInitCmd(m.state))
			}
		}
	}

	// Data messages go to every pane so loads finish even after the
	// user tabbed away. Keystrokes go only to the focused pane.
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		m.headerModel, _ = m.headerModel.Update(msg)
		m.overviewModel, cmd = m.overviewModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followersModel, cmd = m.followersModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followingModel, cmd = m.followingModel.Update(msg)
		cmds = append(cmds, cmd)
		m.activityModel, cmd = m.activityModel.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		switch m.state {
		case common.OverviewView:
			m.overviewModel, cmd = m.overviewModel.Update(msg)
		case common.FollowersView:
			m.followersModel, cmd = m.followersModel.Update(msg)
		case common.FollowingView:
			m.followingModel, cmd = m.followingModel.Update(msg)
		case common.ActivityView:
			m.activityModel, cmd = m.activityModel.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {
	availableHeight := m.height - 10
	paneWidth := m.width - 6

	var pane string
	switch m.state {
	case common.OverviewView:
		pane = m.overviewModel.View()
	case common.FollowersView:
		pane = m.followersModel.View()
	case common.FollowingView:
		pane = m.followingModel.View()
	case common.ActivityView:
		pane = m.activityModel.View()
	}

	body := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(paneWidth).
		MaxWidth(paneWidth).
		Margin(1).
		Render(pane)

	s := m.headerModel.View() + "\n"
	s += focusedModelStyle.Render(body)
	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		m.currentFocusedModel(), m.viewCommands()))

	return lipgloss.NewStyle().Render(s)
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.FollowersView:
		return "followers"
	case common.FollowingView:
		return "following"
	case common.ActivityView:
		return "activity log"
	default:
		return "overview"
	}
}

func (m MainModel) viewCommands() string {
	switch m.state {
	case common.FollowersView:
		return "↑/↓: scroll • r: reload"
	case common.FollowingView:
		if m.followingModel.InputFocused {
			return "enter: follow • esc: back to list"
		}
		return "f: follow someone • ↑/↓: select • u: unfollow"
	case common.ActivityView:
		return "↑/↓: scroll • r: reload"
	default:
		return "r: reload"
	}
}

// typingInInput reports whether keystrokes currently feed a text input
// rather than the navigation keymap.
func (m MainModel) typingInInput() bool {
	return m.state == common.FollowingView && m.followingModel.InputFocused
}

func (m MainModel) viewInitCmd(view common.SessionState) tea.Cmd {
	switch view {
	case common.OverviewView:
		return m.overviewModel.Init()
	case common.FollowersView:
		return m.followersModel.Init()
	case common.FollowingView:
		return m.followingModel.Init()
	case common.ActivityView:
		return m.activityModel.Init()
	default:
		return nil
	}
}

func nextView(s common.SessionState) common.SessionState {
	switch s {
	case common.OverviewView:
		return common.FollowersView
	case common.FollowersView:
		return common.FollowingView
	case common.FollowingView:
		return common.ActivityView
	default:
		return common.OverviewView
	}
}

func prevView(s common.SessionState) common.SessionState {
	switch s {
	case common.OverviewView:
		return common.ActivityView
	case common.FollowersView:
		return common.OverviewView
	case common.FollowingView:
		return common.FollowersView
	default:
		return common.FollowingView
	}
}
