package overview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui/common"
)

var (
	labelStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Width(16).
			Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
			Bold(true)

	valueStyle = lipgloss.NewStyle()

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(common.COLOR_GREEN))

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_RED)).
			Bold(true)
)

// Info is the instance snapshot the overview renders.
type Info struct {
	Handle       string
	ActorIRI     string
	KeysReady    bool
	Fingerprint  string
	Followers    int
	Following    int
	Archived     int
	Published    int
	FederateWiki bool
}

type Model struct {
	Dir   *activitypub.Directory
	Keys  *keystore.KeyStore
	State *state.FederationState

	Info   Info
	Loaded bool
	Width  int
	Height int
}

func InitialModel(dir *activitypub.Directory, keys *keystore.KeyStore, st *state.FederationState, width, height int) Model {
	return Model{
		Dir:    dir,
		Keys:   keys,
		State:  st,
		Width:  width,
		Height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadInfo(m.Dir, m.Keys, m.State)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case infoLoadedMsg:
		m.Info = msg.info
		m.Loaded = true
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("instance overview"))
	s.WriteString("\n\n")

	if !m.Loaded {
		s.WriteString(labelStyle.Render("loading..."))
		return s.String()
	}

	keys := badStyle.Render("UNAVAILABLE - federation is paused")
	if m.Info.KeysReady {
		keys = okStyle.Render("ready " + m.Info.Fingerprint)
	}

	wiki := "local only"
	if m.Info.FederateWiki {
		wiki = "federated"
	}

	row(&s, "account", m.Info.Handle)
	row(&s, "actor", m.Info.ActorIRI)
	row(&s, "signing keys", keys)
	s.WriteString("\n")
	row(&s, "followers", fmt.Sprintf("%d", m.Info.Followers))
	row(&s, "following", fmt.Sprintf("%d", m.Info.Following))
	row(&s, "archived", fmt.Sprintf("%d activities", m.Info.Archived))
	s.WriteString("\n")
	row(&s, "published", fmt.Sprintf("%d pages", m.Info.Published))
	row(&s, "wiki pages", wiki)

	return s.String()
}

func row(s *strings.Builder, label, value string) {
	s.WriteString(labelStyle.Render(label))
	s.WriteString(valueStyle.Render(value))
	s.WriteString("\n")
}

// infoLoadedMsg delivers a fresh snapshot to the pane
type infoLoadedMsg struct {
	info Info
}

func loadInfo(dir *activitypub.Directory, keys *keystore.KeyStore, st *state.FederationState) tea.Cmd {
	return func() tea.Msg {
		actor := dir.Actor()
		info := Info{
			Handle:       "@" + actor.Handle(),
			ActorIRI:     actor.IRI,
			Published:    len(dir.PublishableItems()),
			FederateWiki: dir.FederateWiki(),
		}

		if fp, err := keys.Fingerprint(); err == nil {
			info.KeysReady = true
			info.Fingerprint = fp
		}

		info.Followers, info.Following = st.Counts()
		if archived, err := st.ArchivedCount(); err == nil {
			info.Archived = archived
		}

		return infoLoadedMsg{info: info}
	}
}
