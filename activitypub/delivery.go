package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/metrics"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/util"
	"golang.org/x/time/rate"
)

// broadcastInterval paces fan-out so publishing a page does not hit
// every follower inbox at once.
const broadcastInterval = 100 * time.Millisecond

// Delivery signs outbound activities and posts them to remote inboxes.
type Delivery struct {
	resolver *Resolver
	keys     *keystore.KeyStore
	state    *state.FederationState
	dir      *Directory
	client   *http.Client
	limiter  *rate.Limiter
	log      *log.Logger
	ua       string
}

func NewDelivery(resolver *Resolver, keys *keystore.KeyStore, st *state.FederationState, dir *Directory, logger *log.Logger) *Delivery {
	return &Delivery{
		resolver: resolver,
		keys:     keys,
		state:    st,
		dir:      dir,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(broadcastInterval), 1),
		log:      logger,
		ua:       util.UserAgent(),
	}
}

// Deliver signs and posts one activity to the actor's inbox. The key
// check comes before any network traffic, an unsigned delivery never
// leaves this host.
func (dl *Delivery) Deliver(ctx context.Context, actorURI string, activity *domain.Activity) error {
	privateKey, err := dl.keys.PrivateKey()
	if err != nil {
		metrics.DeliveryAttempts.WithLabelValues("sign_error").Inc()
		return fmt.Errorf("delivery requires signing keys: %w", err)
	}

	remote, err := dl.resolver.Resolve(ctx, actorURI)
	if err != nil {
		metrics.DeliveryAttempts.WithLabelValues("resolve_error").Inc()
		return fmt.Errorf("failed to resolve %s: %w", actorURI, err)
	}

	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, remote.Inbox, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", dl.ua)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if err := SignRequest(req, body, privateKey, dl.dir.Actor().KeyID()); err != nil {
		metrics.DeliveryAttempts.WithLabelValues("sign_error").Inc()
		dl.log.Error("Could not sign activity", "inbox", remote.Inbox, "err", err)
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := dl.client.Do(req)
	if err != nil {
		metrics.DeliveryAttempts.WithLabelValues("post_error").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.DeliveryAttempts.WithLabelValues("post_error").Inc()
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			dl.log.Warn("Remote rejected our signature", "inbox", remote.Inbox, "status", resp.StatusCode)
		}
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	metrics.DeliveryAttempts.WithLabelValues("ok").Inc()
	dl.log.Info("Delivered activity", "type", activity.Type, "inbox", remote.Inbox, "status", resp.StatusCode)
	return nil
}

// Broadcast delivers one activity to every follower, paced by the
// limiter. Individual failures are logged and skipped.
func (dl *Delivery) Broadcast(ctx context.Context, activity *domain.Activity) (delivered, total int) {
	followers := dl.state.Followers()
	for _, follower := range followers {
		if err := dl.limiter.Wait(ctx); err != nil {
			dl.log.Warn("Broadcast cancelled", "err", err)
			return delivered, len(followers)
		}
		if err := dl.Deliver(ctx, follower, activity); err != nil {
			dl.log.Warn("Broadcast delivery failed", "actor", follower, "err", err)
			continue
		}
		delivered++
	}
	return delivered, len(followers)
}

// AnnounceItem federates a newly published page to all followers. The
// wiki landing page never federates and other wiki pages only go out
// when wiki federation is enabled.
func (dl *Delivery) AnnounceItem(ctx context.Context, item domain.ContentItem) {
	if item.IsWikiHome() {
		return
	}
	if item.Kind == domain.WikiPage && !dl.dir.FederateWiki() {
		return
	}

	create := dl.dir.CreateActivity(item)
	delivered, total := dl.Broadcast(ctx, create)
	dl.log.Info("Announced page", "kind", string(item.Kind), "slug", item.Slug, "delivered", delivered, "followers", total)
}

// SendFollow asks to follow a remote actor. The following list only
// records the target once the Follow is out the door.
func (dl *Delivery) SendFollow(ctx context.Context, targetIRI string) error {
	follow := NewFollowActivity(dl.dir.Actor(), targetIRI)
	if err := dl.Deliver(ctx, targetIRI, follow); err != nil {
		return err
	}
	return dl.state.AddFollowing(targetIRI)
}

// SendUnfollow retracts a follow and drops it from the following list.
func (dl *Delivery) SendUnfollow(ctx context.Context, targetIRI string) error {
	undo := NewUndoFollowActivity(dl.dir.Actor(), targetIRI)
	if err := dl.Deliver(ctx, targetIRI, undo); err != nil {
		return err
	}
	return dl.state.RemoveFollowing(targetIRI)
}
