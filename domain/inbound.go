package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ActivityKind uint

const (
	ActivityOther ActivityKind = iota
	ActivityFollow
	ActivityUndo
	ActivityLike
	ActivityAnnounce
	ActivityCreate
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityFollow:
		return "Follow"
	case ActivityUndo:
		return "Undo"
	case ActivityLike:
		return "Like"
	case ActivityAnnounce:
		return "Announce"
	case ActivityCreate:
		return "Create"
	default:
		return "Other"
	}
}

// IncomingActivity is the classified form of an activity received on the
// inbox. Raw always holds the exact bytes that arrived, whatever the kind.
type IncomingActivity struct {
	Kind       ActivityKind
	ID         string
	Type       string
	Actor      string
	ObjectURI  string
	ObjectType string
	Raw        json.RawMessage
}

// ClassifyActivity parses raw inbox bytes into an IncomingActivity.
// Activities without a type field are an error, the caller must reject
// them without side effects.
func ClassifyActivity(raw []byte) (*IncomingActivity, error) {
	var wire struct {
		ID     string      `json:"id"`
		Type   string      `json:"type"`
		Actor  string      `json:"actor"`
		Object interface{} `json:"object"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse activity: %w", err)
	}
	if wire.Type == "" {
		return nil, fmt.Errorf("activity has no type")
	}

	in := &IncomingActivity{
		ID:    wire.ID,
		Type:  wire.Type,
		Actor: wire.Actor,
		Raw:   append(json.RawMessage(nil), raw...),
	}

	// The object is either a bare URI or an embedded object
	switch obj := wire.Object.(type) {
	case string:
		in.ObjectURI = obj
	case map[string]interface{}:
		if id, ok := obj["id"].(string); ok {
			in.ObjectURI = id
		}
		if typ, ok := obj["type"].(string); ok {
			in.ObjectType = typ
		}
	}

	switch wire.Type {
	case "Follow":
		in.Kind = ActivityFollow
	case "Undo":
		in.Kind = ActivityUndo
	case "Like":
		in.Kind = ActivityLike
	case "Announce":
		in.Kind = ActivityAnnounce
	case "Create":
		in.Kind = ActivityCreate
	default:
		in.Kind = ActivityOther
	}

	return in, nil
}

// UndoesFollow reports whether the activity is an Undo of a Follow
func (in *IncomingActivity) UndoesFollow() bool {
	return in.Kind == ActivityUndo && in.ObjectType == "Follow"
}

// ActivityRecord is an archived inbound activity (for the activity log)
type ActivityRecord struct {
	Id          uuid.UUID
	ActivityURI string
	Type        string
	ActorURI    string
	ObjectURI   string
	RawJSON     string
	ReceivedAt  time.Time
}

// NewActivityRecord builds an archive record from a classified activity
func NewActivityRecord(in *IncomingActivity) ActivityRecord {
	return ActivityRecord{
		Id:          uuid.New(),
		ActivityURI: in.ID,
		Type:        in.Type,
		ActorURI:    in.Actor,
		ObjectURI:   in.ObjectURI,
		RawJSON:     string(in.Raw),
		ReceivedAt:  time.Now().UTC(),
	}
}
