// Package state tracks who follows this instance and whom it follows,
// persisted as plain JSON files next to the activity archive.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/metrics"
	"github.com/deemkeen/glyptodon/util"
)

const (
	followersFile = "followers.json"
	followingFile = "following.json"
)

// FederationState holds the follower and following sets. Every mutation
// is written to disk before it becomes visible, so a crash can lose at
// most the change that was in flight.
type FederationState struct {
	mu        sync.Mutex
	followers []string
	following []string
	dir       string
	archive   *db.Archive
	log       *log.Logger
}

// Load reads the persisted follower lists from dataDir. Missing or
// unreadable files start the corresponding list empty rather than
// preventing startup.
func Load(dataDir string, archive *db.Archive, logger *log.Logger) *FederationState {
	st := &FederationState{
		dir:     dataDir,
		archive: archive,
		log:     logger,
	}
	st.followers = st.loadList(followersFile)
	st.following = st.loadList(followingFile)
	metrics.Followers.Set(float64(len(st.followers)))
	metrics.Following.Set(float64(len(st.following)))
	logger.Info("Federation state loaded", "followers", len(st.followers), "following", len(st.following))
	return st
}

func (st *FederationState) loadList(name string) []string {
	path := filepath.Join(st.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.log.Warn("Could not read state file, starting empty", "file", name, "err", err)
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		st.log.Warn("Corrupt state file, starting empty", "file", name, "err", err)
		return nil
	}
	return list
}

func (st *FederationState) saveList(name string, list []string) error {
	if list == nil {
		list = []string{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(filepath.Join(st.dir, name), data, 0644)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// AddFollower records a new follower. Adding an existing follower is a
// no-op.
func (st *FederationState) AddFollower(actorURI string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if contains(st.followers, actorURI) {
		return nil
	}
	updated := append(append([]string{}, st.followers...), actorURI)
	if err := st.saveList(followersFile, updated); err != nil {
		return err
	}
	st.followers = updated
	metrics.Followers.Set(float64(len(updated)))
	st.log.Info("New follower", "actor", actorURI, "total", len(updated))
	return nil
}

// RemoveFollower drops a follower. Removing an unknown follower is a
// no-op.
func (st *FederationState) RemoveFollower(actorURI string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	updated := without(st.followers, actorURI)
	if len(updated) == len(st.followers) {
		return nil
	}
	if err := st.saveList(followersFile, updated); err != nil {
		return err
	}
	st.followers = updated
	metrics.Followers.Set(float64(len(updated)))
	st.log.Info("Follower removed", "actor", actorURI, "total", len(updated))
	return nil
}

// AddFollowing records an account this instance follows.
func (st *FederationState) AddFollowing(actorURI string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if contains(st.following, actorURI) {
		return nil
	}
	updated := append(append([]string{}, st.following...), actorURI)
	if err := st.saveList(followingFile, updated); err != nil {
		return err
	}
	st.following = updated
	metrics.Following.Set(float64(len(updated)))
	st.log.Info("Now following", "actor", actorURI, "total", len(updated))
	return nil
}

// RemoveFollowing drops an account from the following list.
func (st *FederationState) RemoveFollowing(actorURI string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	updated := without(st.following, actorURI)
	if len(updated) == len(st.following) {
		return nil
	}
	if err := st.saveList(followingFile, updated); err != nil {
		return err
	}
	st.following = updated
	metrics.Following.Set(float64(len(updated)))
	st.log.Info("Unfollowed", "actor", actorURI, "total", len(updated))
	return nil
}

// Followers returns a copy of the follower list.
func (st *FederationState) Followers() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string{}, st.followers...)
}

// Following returns a copy of the following list.
func (st *FederationState) Following() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string{}, st.following...)
}

// IsFollower reports whether the given actor follows this instance.
func (st *FederationState) IsFollower(actorURI string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return contains(st.followers, actorURI)
}

// Counts returns the follower and following counts.
func (st *FederationState) Counts() (followers int, following int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.followers), len(st.following)
}

// AppendActivity stores an inbound activity in the archive.
func (st *FederationState) AppendActivity(rec domain.ActivityRecord) error {
	return st.archive.Insert(rec)
}

// RecentActivities returns the newest archived activities.
func (st *FederationState) RecentActivities(limit int) ([]domain.ActivityRecord, error) {
	return st.archive.Recent(limit)
}

// ArchivedCount returns the number of archived activities.
func (st *FederationState) ArchivedCount() (int, error) {
	return st.archive.Count()
}
