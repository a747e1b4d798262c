package domain

import (
	"testing"
)

func TestClassifyActivityFollow(t *testing.T) {
	raw := []byte(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://remote.example/activities/1",
		"type": "Follow",
		"actor": "https://remote.example/users/alice",
		"object": "https://blog.example/actor"
	}`)

	in, err := ClassifyActivity(raw)
	if err != nil {
		t.Fatalf("ClassifyActivity failed: %v", err)
	}

	if in.Kind != ActivityFollow {
		t.Errorf("Expected kind Follow, got %s", in.Kind)
	}
	if in.Actor != "https://remote.example/users/alice" {
		t.Errorf("Expected actor URI, got %s", in.Actor)
	}
	if in.ObjectURI != "https://blog.example/actor" {
		t.Errorf("Expected object URI from string object, got %s", in.ObjectURI)
	}
	if string(in.Raw) != string(raw) {
		t.Error("Raw payload should be preserved verbatim")
	}
}

func TestClassifyActivityUndoFollow(t *testing.T) {
	raw := []byte(`{
		"id": "https://remote.example/activities/2",
		"type": "Undo",
		"actor": "https://remote.example/users/alice",
		"object": {
			"id": "https://remote.example/activities/1",
			"type": "Follow",
			"actor": "https://remote.example/users/alice",
			"object": "https://blog.example/actor"
		}
	}`)

	in, err := ClassifyActivity(raw)
	if err != nil {
		t.Fatalf("ClassifyActivity failed: %v", err)
	}

	if in.Kind != ActivityUndo {
		t.Errorf("Expected kind Undo, got %s", in.Kind)
	}
	if !in.UndoesFollow() {
		t.Error("Expected UndoesFollow to be true for Undo with Follow object")
	}
	if in.ObjectURI != "https://remote.example/activities/1" {
		t.Errorf("Expected embedded object id, got %s", in.ObjectURI)
	}
	if in.ObjectType != "Follow" {
		t.Errorf("Expected embedded object type Follow, got %s", in.ObjectType)
	}
}

func TestClassifyActivityUndoLike(t *testing.T) {
	raw := []byte(`{
		"type": "Undo",
		"actor": "https://remote.example/users/alice",
		"object": {"id": "https://remote.example/likes/9", "type": "Like"}
	}`)

	in, err := ClassifyActivity(raw)
	if err != nil {
		t.Fatalf("ClassifyActivity failed: %v", err)
	}

	if in.UndoesFollow() {
		t.Error("Undo of a Like should not count as an unfollow")
	}
}

func TestClassifyActivityKinds(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		expected ActivityKind
	}{
		{"like", "Like", ActivityLike},
		{"announce", "Announce", ActivityAnnounce},
		{"create", "Create", ActivityCreate},
		{"move is other", "Move", ActivityOther},
		{"delete is other", "Delete", ActivityOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(`{"type": "` + tt.typ + `", "actor": "https://remote.example/u/a"}`)
			in, err := ClassifyActivity(raw)
			if err != nil {
				t.Fatalf("ClassifyActivity failed: %v", err)
			}
			if in.Kind != tt.expected {
				t.Errorf("Expected kind %s, got %s", tt.expected, in.Kind)
			}
		})
	}
}

func TestClassifyActivityMissingType(t *testing.T) {
	raw := []byte(`{"id": "https://remote.example/activities/3", "actor": "https://remote.example/u/a"}`)

	_, err := ClassifyActivity(raw)
	if err == nil {
		t.Error("Expected error for activity without type")
	}
}

func TestClassifyActivityMalformedJSON(t *testing.T) {
	_, err := ClassifyActivity([]byte(`{"type": "Follow"`))
	if err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestNewActivityRecord(t *testing.T) {
	raw := []byte(`{"id": "https://remote.example/likes/1", "type": "Like", "actor": "https://remote.example/u/a", "object": "https://blog.example/blog/hello"}`)

	in, err := ClassifyActivity(raw)
	if err != nil {
		t.Fatalf("ClassifyActivity failed: %v", err)
	}

	rec := NewActivityRecord(in)

	if rec.Type != "Like" {
		t.Errorf("Expected type Like, got %s", rec.Type)
	}
	if rec.ActorURI != "https://remote.example/u/a" {
		t.Errorf("Expected actor URI, got %s", rec.ActorURI)
	}
	if rec.ObjectURI != "https://blog.example/blog/hello" {
		t.Errorf("Expected object URI, got %s", rec.ObjectURI)
	}
	if rec.RawJSON != string(raw) {
		t.Error("Expected raw JSON to be preserved")
	}
	if rec.ReceivedAt.IsZero() {
		t.Error("Expected ReceivedAt to be set")
	}
}
