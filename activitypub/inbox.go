package activitypub

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/metrics"
	"github.com/deemkeen/glyptodon/state"
)

// Outcome is the dispatcher's verdict on one inbound activity.
type Outcome struct {
	Status   int
	Response map[string]interface{}
}

const (
	// A new follower gets the latest pages pushed so their timeline
	// is not empty until the next publish.
	backfillBlogPosts = 3
	backfillWikiPages = 2

	defaultBackfillDelay = 500 * time.Millisecond
	backfillTimeout      = 2 * time.Minute
)

// Dispatcher routes inbound activities to their handlers. It is
// transport-free, the HTTP layer maps the Outcome onto the response.
type Dispatcher struct {
	state         *state.FederationState
	delivery      *Delivery
	dir           *Directory
	log           *log.Logger
	backfillDelay time.Duration
}

func NewDispatcher(st *state.FederationState, delivery *Delivery, dir *Directory, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		state:         st,
		delivery:      delivery,
		dir:           dir,
		log:           logger,
		backfillDelay: defaultBackfillDelay,
	}
}

// Process handles one inbound activity. Activities that do not parse
// are rejected without touching any state.
func (dp *Dispatcher) Process(ctx context.Context, body []byte) Outcome {
	in, err := domain.ClassifyActivity(body)
	if err != nil {
		dp.log.Warn("Discarding unparsable activity", "err", err)
		return Outcome{
			Status:   http.StatusBadRequest,
			Response: map[string]interface{}{"error": "invalid activity"},
		}
	}

	metrics.InboxActivities.WithLabelValues(in.Kind.String()).Inc()
	dp.log.Info("Inbox activity", "type", in.Type, "actor", in.Actor)

	switch {
	case in.Kind == domain.ActivityFollow:
		return dp.handleFollow(ctx, in)
	case in.UndoesFollow():
		return dp.handleUnfollow(in)
	default:
		return dp.archive(in)
	}
}

func (dp *Dispatcher) handleFollow(ctx context.Context, in *domain.IncomingActivity) Outcome {
	if in.Actor == "" {
		return Outcome{
			Status:   http.StatusBadRequest,
			Response: map[string]interface{}{"error": "follow without actor"},
		}
	}

	if err := dp.state.AddFollower(in.Actor); err != nil {
		dp.log.Error("Failed to persist follower", "actor", in.Actor, "err", err)
		return Outcome{
			Status:   http.StatusInternalServerError,
			Response: map[string]interface{}{"error": "could not store follower"},
		}
	}

	accept := NewAcceptActivity(dp.dir.Actor(), in)
	delivered := true
	if err := dp.delivery.Deliver(ctx, in.Actor, accept); err != nil {
		// The follower is kept either way, most servers retry the
		// Follow when no Accept arrives.
		dp.log.Warn("Accept delivery failed", "actor", in.Actor, "err", err)
		delivered = false
	}

	go dp.backfill(in.Actor)

	return Outcome{
		Status:   http.StatusOK,
		Response: map[string]interface{}{"ok": true, "accept_delivered": delivered},
	}
}

func (dp *Dispatcher) handleUnfollow(in *domain.IncomingActivity) Outcome {
	if err := dp.state.RemoveFollower(in.Actor); err != nil {
		dp.log.Error("Failed to remove follower", "actor", in.Actor, "err", err)
		return Outcome{
			Status:   http.StatusInternalServerError,
			Response: map[string]interface{}{"error": "could not remove follower"},
		}
	}
	return Outcome{
		Status:   http.StatusOK,
		Response: map[string]interface{}{"ok": true},
	}
}

// archive keeps activities we take no action on, for the admin console.
func (dp *Dispatcher) archive(in *domain.IncomingActivity) Outcome {
	rec := domain.NewActivityRecord(in)
	if err := dp.state.AppendActivity(rec); err != nil {
		dp.log.Error("Failed to archive activity", "type", in.Type, "err", err)
		return Outcome{
			Status:   http.StatusInternalServerError,
			Response: map[string]interface{}{"error": "could not archive activity"},
		}
	}
	return Outcome{
		Status:   http.StatusAccepted,
		Response: map[string]interface{}{"ok": true},
	}
}

// backfill pushes the most recent pages to a fresh follower, spaced
// out so their server is not flooded.
func (dp *Dispatcher) backfill(actorURI string) {
	ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
	defer cancel()

	blog, wiki := 0, 0
	for _, item := range dp.dir.PublishableItems() {
		if blog >= backfillBlogPosts && wiki >= backfillWikiPages {
			break
		}
		switch item.Kind {
		case domain.BlogPost:
			if blog >= backfillBlogPosts {
				continue
			}
			blog++
		case domain.WikiPage:
			if wiki >= backfillWikiPages {
				continue
			}
			wiki++
		}

		create := dp.dir.CreateActivity(item)
		if err := dp.delivery.Deliver(ctx, actorURI, create); err != nil {
			dp.log.Warn("Backfill delivery failed", "actor", actorURI, "slug", item.Slug, "err", err)
		}
		time.Sleep(dp.backfillDelay)
	}
}
