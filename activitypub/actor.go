package activitypub

import (
	"fmt"

	"github.com/deemkeen/glyptodon/util"
)

// Actor is the single local ActivityPub identity this instance
// federates as.
type Actor struct {
	Username    string
	Domain      string
	DisplayName string
	Summary     string
	BaseURL     string
	IRI         string
}

// NewActor derives the local actor from the configuration. The
// identity is fixed for the lifetime of the process, a changed
// username or domain needs a restart.
func NewActor(conf util.Conf) Actor {
	base := conf.BaseURL()
	name := conf.DisplayName
	if name == "" {
		name = conf.Username
	}
	return Actor{
		Username:    conf.Username,
		Domain:      conf.SslDomain,
		DisplayName: name,
		Summary:     conf.Summary,
		BaseURL:     base,
		IRI:         base + "/actor",
	}
}

// KeyID identifies the actor's signing key in outgoing signatures.
func (a Actor) KeyID() string {
	return a.IRI + "#main-key"
}

func (a Actor) InboxURL() string {
	return a.BaseURL + "/inbox"
}

func (a Actor) OutboxURL() string {
	return a.BaseURL + "/outbox"
}

func (a Actor) FollowersURL() string {
	return a.BaseURL + "/followers"
}

func (a Actor) FollowingURL() string {
	return a.BaseURL + "/following"
}

// Handle returns the fediverse handle, e.g. "alice@blog.example".
func (a Actor) Handle() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Domain)
}
