package state

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

func setupTestState(t *testing.T) (*FederationState, string) {
	t.Helper()
	dir := t.TempDir()
	logger := log.New(io.Discard)
	archive, err := db.Open(filepath.Join(dir, "activities.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return Load(dir, archive, logger), dir
}

func TestLoadStartsEmpty(t *testing.T) {
	st, _ := setupTestState(t)

	followers, following := st.Counts()
	if followers != 0 || following != 0 {
		t.Errorf("Expected empty state, got %d followers, %d following", followers, following)
	}
}

func TestAddFollowerPersists(t *testing.T) {
	st, dir := setupTestState(t)

	actor := "https://example.com/users/bob"
	if err := st.AddFollower(actor); err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}

	if !st.IsFollower(actor) {
		t.Error("Expected actor to be a follower")
	}

	// A fresh load sees the same follower
	logger := log.New(io.Discard)
	archive, err := db.Open(filepath.Join(dir, "reload.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer archive.Close()

	reloaded := Load(dir, archive, logger)
	if !reloaded.IsFollower(actor) {
		t.Error("Expected follower to survive a reload")
	}
}

func TestAddFollowerIsIdempotent(t *testing.T) {
	st, _ := setupTestState(t)

	actor := "https://example.com/users/bob"
	if err := st.AddFollower(actor); err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}
	if err := st.AddFollower(actor); err != nil {
		t.Fatalf("Second AddFollower failed: %v", err)
	}

	if len(st.Followers()) != 1 {
		t.Errorf("Expected 1 follower, got %d", len(st.Followers()))
	}
}

func TestRemoveFollower(t *testing.T) {
	st, _ := setupTestState(t)

	actor := "https://example.com/users/bob"
	st.AddFollower(actor)
	st.AddFollower("https://example.com/users/carol")

	if err := st.RemoveFollower(actor); err != nil {
		t.Fatalf("RemoveFollower failed: %v", err)
	}

	if st.IsFollower(actor) {
		t.Error("Expected actor to be removed")
	}
	if len(st.Followers()) != 1 {
		t.Errorf("Expected 1 remaining follower, got %d", len(st.Followers()))
	}

	// Removing an unknown actor is fine
	if err := st.RemoveFollower("https://example.com/users/nobody"); err != nil {
		t.Errorf("Removing unknown follower should be a no-op: %v", err)
	}
}

func TestFollowingRoundTrip(t *testing.T) {
	st, dir := setupTestState(t)

	target := "https://other.example/users/dana"
	if err := st.AddFollowing(target); err != nil {
		t.Fatalf("AddFollowing failed: %v", err)
	}

	following := st.Following()
	if len(following) != 1 || following[0] != target {
		t.Errorf("Expected following list [%s], got %v", target, following)
	}

	if err := st.RemoveFollowing(target); err != nil {
		t.Fatalf("RemoveFollowing failed: %v", err)
	}
	if len(st.Following()) != 0 {
		t.Error("Expected empty following list after removal")
	}

	// The removal is persisted too
	data, err := os.ReadFile(filepath.Join(dir, "following.json"))
	if err != nil {
		t.Fatalf("Failed to read following.json: %v", err)
	}
	if string(data) == "" {
		t.Error("Expected following.json to hold an empty list")
	}
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "followers.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("Failed to plant corrupt file: %v", err)
	}

	logger := log.New(io.Discard)
	archive, err := db.Open(filepath.Join(dir, "activities.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer archive.Close()

	st := Load(dir, archive, logger)
	if len(st.Followers()) != 0 {
		t.Error("Expected empty follower list for corrupt file")
	}

	// And the state is writable again afterwards
	if err := st.AddFollower("https://example.com/users/bob"); err != nil {
		t.Errorf("AddFollower after corrupt load failed: %v", err)
	}
}

func TestFollowersReturnsCopy(t *testing.T) {
	st, _ := setupTestState(t)

	st.AddFollower("https://example.com/users/bob")
	list := st.Followers()
	list[0] = "mutated"

	if st.Followers()[0] != "https://example.com/users/bob" {
		t.Error("Mutating the returned slice must not affect internal state")
	}
}

func TestAppendAndRecentActivities(t *testing.T) {
	st, _ := setupTestState(t)

	rec := domain.ActivityRecord{
		Id:          uuid.New(),
		ActivityURI: "https://example.com/activities/1",
		Type:        "Like",
		ActorURI:    "https://example.com/users/bob",
		RawJSON:     `{"type":"Like"}`,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := st.AppendActivity(rec); err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}

	records, err := st.RecentActivities(10)
	if err != nil {
		t.Fatalf("RecentActivities failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Type != "Like" {
		t.Errorf("Expected type Like, got %s", records[0].Type)
	}

	count, err := st.ArchivedCount()
	if err != nil {
		t.Fatalf("ArchivedCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 archived activity, got %d", count)
	}
}
