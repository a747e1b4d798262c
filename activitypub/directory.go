package activitypub

import (
	"fmt"
	"sort"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/util"
)

// ContentSource lists the published content items.
type ContentSource interface {
	ListItems() []domain.ContentItem
}

// Directory renders the ActivityPub documents served for the local
// actor: webfinger, the Person document and the collections.
type Directory struct {
	actor   Actor
	keys    *keystore.KeyStore
	state   *state.FederationState
	content ContentSource
	conf    *util.ConfigStore
}

func NewDirectory(actor Actor, keys *keystore.KeyStore, st *state.FederationState, content ContentSource, conf *util.ConfigStore) *Directory {
	return &Directory{
		actor:   actor,
		keys:    keys,
		state:   st,
		content: content,
		conf:    conf,
	}
}

func (d *Directory) Actor() Actor {
	return d.actor
}

// FederateWiki reads the current wiki federation flag. The flag is
// reloadable, unlike the actor identity.
func (d *Directory) FederateWiki() bool {
	return d.conf.Conf().FederateWiki
}

// Webfinger answers a webfinger query. Only the exact local handle
// resolves, this instance hosts a single actor.
func (d *Directory) Webfinger(resource string) (*domain.Webfinger, error) {
	subject := "acct:" + d.actor.Handle()
	if resource != subject {
		return nil, fmt.Errorf("unknown resource: %s", resource)
	}
	return &domain.Webfinger{
		Subject: subject,
		Links: []domain.WebfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: d.actor.IRI,
			},
		},
	}, nil
}

// ActorDocument renders the Person document. It fails while the key
// pair is incomplete so a half-initialized actor never reaches other
// servers.
func (d *Directory) ActorDocument() (*domain.Person, error) {
	if _, err := d.keys.PrivateKey(); err != nil {
		return nil, err
	}
	pubPEM, err := d.keys.PublicKeyPEM()
	if err != nil {
		return nil, err
	}

	return &domain.Person{
		Context:           []interface{}{domain.ActivityStreamsContext, domain.SecurityContext},
		ID:                d.actor.IRI,
		Type:              "Person",
		PreferredUsername: d.actor.Username,
		Name:              d.actor.DisplayName,
		Summary:           d.actor.Summary,
		URL:               d.actor.BaseURL,
		Inbox:             d.actor.InboxURL(),
		Outbox:            d.actor.OutboxURL(),
		Followers:         d.actor.FollowersURL(),
		Following:         d.actor.FollowingURL(),
		ManuallyApproves:  false,
		Discoverable:      true,
		Endpoints:         domain.Endpoints{SharedInbox: d.actor.InboxURL()},
		PublicKey: domain.PublicKey{
			ID:           d.actor.KeyID(),
			Owner:        d.actor.IRI,
			PublicKeyPem: pubPEM,
		},
	}, nil
}

// PublishableItems returns the content that federates, newest first.
// The wiki landing page stays local, other wiki pages only federate
// when enabled.
func (d *Directory) PublishableItems() []domain.ContentItem {
	federateWiki := d.FederateWiki()
	items := d.content.ListItems()

	out := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if item.IsWikiHome() {
			continue
		}
		if item.Kind == domain.WikiPage && !federateWiki {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	return out
}

// OutboxDocument renders the outbox as a fully populated collection of
// Create activities.
func (d *Directory) OutboxDocument() *domain.OrderedCollection {
	items := d.PublishableItems()
	ordered := make([]interface{}, 0, len(items))
	for _, item := range items {
		ordered = append(ordered, d.CreateActivity(item))
	}
	return &domain.OrderedCollection{
		Context:      domain.ActivityStreamsContext,
		ID:           d.actor.OutboxURL(),
		Type:         "OrderedCollection",
		TotalItems:   len(ordered),
		OrderedItems: ordered,
	}
}

// FollowersDocument lists the follower actor URIs.
func (d *Directory) FollowersDocument() *domain.OrderedCollection {
	followers := d.state.Followers()
	items := make([]interface{}, 0, len(followers))
	for _, follower := range followers {
		items = append(items, follower)
	}
	return &domain.OrderedCollection{
		Context:      domain.ActivityStreamsContext,
		ID:           d.actor.FollowersURL(),
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	}
}

// FollowingDocument lists the actor URIs this instance follows.
func (d *Directory) FollowingDocument() *domain.OrderedCollection {
	following := d.state.Following()
	items := make([]interface{}, 0, len(following))
	for _, followed := range following {
		items = append(items, followed)
	}
	return &domain.OrderedCollection{
		Context:      domain.ActivityStreamsContext,
		ID:           d.actor.FollowingURL(),
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	}
}

// InboxSummary describes the inbox endpoint for plain GET requests.
func (d *Directory) InboxSummary() map[string]interface{} {
	followers, following := d.state.Counts()
	archived, err := d.state.ArchivedCount()
	if err != nil {
		archived = 0
	}
	return map[string]interface{}{
		"inbox":     d.actor.InboxURL(),
		"note":      "This inbox accepts ActivityPub activities via POST.",
		"followers": followers,
		"following": following,
		"archived":  archived,
	}
}

// ArticleDocument renders a content item as an Article object.
func (d *Directory) ArticleDocument(item domain.ContentItem) *domain.Article {
	itemURL := item.URL(d.actor.BaseURL)
	tags := make([]domain.HashTag, 0, len(item.Tags))
	for _, tag := range item.Tags {
		tags = append(tags, domain.HashTag{Type: "Hashtag", Name: "#" + tag})
	}
	return &domain.Article{
		Context:      domain.ActivityStreamsContext,
		ID:           itemURL,
		Type:         "Article",
		Name:         item.Title,
		Content:      item.HTML,
		Summary:      item.Summary,
		URL:          itemURL,
		AttributedTo: d.actor.IRI,
		Published:    item.Published.UTC().Format(time.RFC3339),
		To:           []string{domain.PublicAudience},
		Cc:           []string{d.actor.FollowersURL()},
		Tag:          tags,
	}
}

// CreateActivity wraps a content item in its Create activity. The id
// derives from the item URL so announcing the same page twice yields
// the same activity.
func (d *Directory) CreateActivity(item domain.ContentItem) *domain.Activity {
	article := d.ArticleDocument(item)
	// Context travels on the enclosing activity
	article.Context = nil
	return &domain.Activity{
		Context:   domain.ActivityStreamsContext,
		ID:        article.ID + "/activity",
		Type:      "Create",
		Actor:     d.actor.IRI,
		Published: article.Published,
		To:        article.To,
		Cc:        article.Cc,
		Object:    article,
	}
}
