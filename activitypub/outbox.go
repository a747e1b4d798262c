package activitypub

import (
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// newActivityID mints a unique activity id under the local namespace.
func (a Actor) newActivityID() string {
	return a.BaseURL + "/activities/" + uuid.New().String()
}

// NewAcceptActivity builds the Accept answering an inbound Follow. The
// embedded object echoes the original Follow so the remote side can
// match it.
func NewAcceptActivity(actor Actor, in *domain.IncomingActivity) *domain.Activity {
	return &domain.Activity{
		Context: domain.ActivityStreamsContext,
		ID:      actor.newActivityID(),
		Type:    "Accept",
		Actor:   actor.IRI,
		Object: &domain.Activity{
			ID:     in.ID,
			Type:   "Follow",
			Actor:  in.Actor,
			Object: actor.IRI,
		},
	}
}

// NewFollowActivity builds an outbound Follow request.
func NewFollowActivity(actor Actor, targetIRI string) *domain.Activity {
	return &domain.Activity{
		Context: domain.ActivityStreamsContext,
		ID:      actor.newActivityID(),
		Type:    "Follow",
		Actor:   actor.IRI,
		Object:  targetIRI,
	}
}

// NewUndoFollowActivity builds the Undo retracting a previously sent
// Follow. Remote servers match it on actor and object.
func NewUndoFollowActivity(actor Actor, targetIRI string) *domain.Activity {
	return &domain.Activity{
		Context: domain.ActivityStreamsContext,
		ID:      actor.newActivityID(),
		Type:    "Undo",
		Actor:   actor.IRI,
		Object: &domain.Activity{
			Type:   "Follow",
			Actor:  actor.IRI,
			Object: targetIRI,
		},
	}
}
