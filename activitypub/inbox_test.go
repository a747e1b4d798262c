package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/state"
)

type inboxRequest struct {
	method  string
	path    string
	body    []byte
	headers http.Header
}

// remoteServer plays the part of another fediverse instance: it serves
// actor documents under /users/ and records everything posted to /inbox/.
type remoteServer struct {
	server *httptest.Server

	mu           sync.Mutex
	requests     []inboxRequest
	actorFetches int
	failInbox    bool
	noInboxField bool
}

func newRemoteServer(t *testing.T) *remoteServer {
	t.Helper()
	rs := &remoteServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", rs.serveActor)
	mux.HandleFunc("/inbox/", rs.serveInbox)
	rs.server = httptest.NewServer(mux)
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *remoteServer) actorURI(name string) string {
	return rs.server.URL + "/users/" + name
}

func (rs *remoteServer) serveActor(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)

	rs.mu.Lock()
	rs.actorFetches++
	incomplete := rs.noInboxField
	rs.mu.Unlock()

	doc := map[string]interface{}{
		"id":                rs.server.URL + r.URL.Path,
		"type":              "Person",
		"preferredUsername": name,
		"inbox":             rs.server.URL + "/inbox/" + name,
	}
	if incomplete {
		delete(doc, "inbox")
	}
	w.Header().Set("Content-Type", "application/activity+json")
	json.NewEncoder(w).Encode(doc)
}

func (rs *remoteServer) serveInbox(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	rs.mu.Lock()
	rs.requests = append(rs.requests, inboxRequest{
		method:  r.Method,
		path:    r.URL.Path,
		body:    body,
		headers: r.Header.Clone(),
	})
	fail := rs.failInbox
	rs.mu.Unlock()

	if fail {
		http.Error(w, "rejected", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (rs *remoteServer) setFailInbox(v bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failInbox = v
}

func (rs *remoteServer) setNoInboxField(v bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.noInboxField = v
}

func (rs *remoteServer) inboxRequests() []inboxRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]inboxRequest{}, rs.requests...)
}

func (rs *remoteServer) fetchCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.actorFetches
}

// waitForInbox polls until n requests arrived, the delivery side runs
// asynchronously for backfills.
func (rs *remoteServer) waitForInbox(t *testing.T, n int) []inboxRequest {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		reqs := rs.inboxRequests()
		if len(reqs) >= n {
			return reqs
		}
		time.Sleep(10 * time.Millisecond)
	}
	reqs := rs.inboxRequests()
	t.Fatalf("Expected %d inbox requests, got %d", n, len(reqs))
	return reqs
}

type federationHarness struct {
	dir      *Directory
	st       *state.FederationState
	delivery *Delivery
	dispatch *Dispatcher
}

func newFederationHarness(t *testing.T, federateWiki, withKeys bool, items []domain.ContentItem) *federationHarness {
	t.Helper()
	conf, dataDir := newTestConfigStore(t, federateWiki)
	logger := log.New(io.Discard)

	ks := keystore.New(dataDir, conf, logger)
	if withKeys {
		if err := ks.EnsureKeys(false); err != nil {
			t.Fatalf("EnsureKeys failed: %v", err)
		}
	}

	archive, err := db.Open(filepath.Join(dataDir, "activities.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })

	st := state.Load(dataDir, archive, logger)
	actor := NewActor(conf.Conf())
	dir := NewDirectory(actor, ks, st, &stubContent{items: items}, conf)
	delivery := NewDelivery(NewResolver(logger), ks, st, dir, logger)
	dispatch := NewDispatcher(st, delivery, dir, logger)
	// Tests should not wait out the pacing between backfill deliveries
	dispatch.backfillDelay = 0

	return &federationHarness{dir: dir, st: st, delivery: delivery, dispatch: dispatch}
}

func followJSON(followID, actorURI string) []byte {
	return []byte(fmt.Sprintf(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": %q,
		"type": "Follow",
		"actor": %q,
		"object": "https://blog.example/actor"
	}`, followID, actorURI))
}

func undoFollowJSON(followID, actorURI string) []byte {
	return []byte(fmt.Sprintf(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": %q,
		"type": "Undo",
		"actor": %q,
		"object": {
			"id": %q,
			"type": "Follow",
			"actor": %q,
			"object": "https://blog.example/actor"
		}
	}`, followID+"#undo", actorURI, followID, actorURI))
}

func TestProcessRejectsInvalidJSON(t *testing.T) {
	h := newFederationHarness(t, false, false, nil)

	outcome := h.dispatch.Process(context.Background(), []byte(`{"broken`))
	if outcome.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", outcome.Status)
	}
	if outcome.Response["error"] != "invalid activity" {
		t.Errorf("Unexpected response: %v", outcome.Response)
	}

	followers, following := h.st.Counts()
	if followers != 0 || following != 0 {
		t.Error("Rejected activity must not change state")
	}
}

func TestProcessRejectsMissingType(t *testing.T) {
	h := newFederationHarness(t, false, false, nil)

	outcome := h.dispatch.Process(context.Background(), []byte(`{"id": "https://example.com/x", "actor": "https://example.com/users/bob"}`))
	if outcome.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", outcome.Status)
	}
}

func TestProcessFollowAddsFollowerAndDeliversAccept(t *testing.T) {
	rs := newRemoteServer(t)
	h := newFederationHarness(t, false, true, nil)

	bob := rs.actorURI("bob")
	followID := rs.server.URL + "/activities/1"
	outcome := h.dispatch.Process(context.Background(), followJSON(followID, bob))

	if outcome.Status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", outcome.Status)
	}
	if outcome.Response["ok"] != true || outcome.Response["accept_delivered"] != true {
		t.Errorf("Unexpected response: %v", outcome.Response)
	}
	if !h.st.IsFollower(bob) {
		t.Error("Expected bob to be recorded as follower")
	}

	reqs := rs.waitForInbox(t, 1)
	req := reqs[0]
	if req.method != http.MethodPost || req.path != "/inbox/bob" {
		t.Errorf("Expected POST to bob's inbox, got %s %s", req.method, req.path)
	}
	if ct := req.headers.Get("Content-Type"); ct != "application/activity+json" {
		t.Errorf("Unexpected content type: %s", ct)
	}
	if req.headers.Get("User-Agent") == "" {
		t.Error("Expected a User-Agent header")
	}
	if got := req.headers.Get("Digest"); got != Digest(req.body) {
		t.Errorf("Digest header does not match body: %s", got)
	}
	sig := req.headers.Get("Signature")
	if !strings.Contains(sig, `keyId="https://blog.example/actor#main-key"`) {
		t.Errorf("Expected signature with our key id, got %s", sig)
	}

	var accept struct {
		Type   string `json:"type"`
		Actor  string `json:"actor"`
		Object struct {
			ID     string `json:"id"`
			Type   string `json:"type"`
			Actor  string `json:"actor"`
			Object string `json:"object"`
		} `json:"object"`
	}
	if err := json.Unmarshal(req.body, &accept); err != nil {
		t.Fatalf("Failed to parse accept: %v", err)
	}
	if accept.Type != "Accept" || accept.Actor != "https://blog.example/actor" {
		t.Errorf("Unexpected accept envelope: %+v", accept)
	}
	if accept.Object.ID != followID || accept.Object.Type != "Follow" {
		t.Errorf("Accept must embed the original follow, got %+v", accept.Object)
	}
	if accept.Object.Actor != bob || accept.Object.Object != "https://blog.example/actor" {
		t.Errorf("Unexpected embedded follow: %+v", accept.Object)
	}
}

func TestProcessFollowBackfillsRecentPages(t *testing.T) {
	rs := newRemoteServer(t)
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []domain.ContentItem{
		testItem(domain.BlogPost, "post-1", "Post 1", base.Add(1*time.Hour)),
		testItem(domain.BlogPost, "post-2", "Post 2", base.Add(2*time.Hour)),
		testItem(domain.BlogPost, "post-3", "Post 3", base.Add(3*time.Hour)),
		testItem(domain.BlogPost, "post-4", "Post 4", base.Add(4*time.Hour)),
		testItem(domain.WikiPage, "guide-1", "Guide 1", base.Add(5*time.Hour)),
		testItem(domain.WikiPage, "guide-2", "Guide 2", base.Add(6*time.Hour)),
		testItem(domain.WikiPage, "home", "Home", base.Add(7*time.Hour)),
	}
	h := newFederationHarness(t, true, true, items)

	bob := rs.actorURI("bob")
	outcome := h.dispatch.Process(context.Background(), followJSON(rs.server.URL+"/activities/1", bob))
	if outcome.Status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", outcome.Status)
	}

	// One accept, then the three newest posts and two newest wiki pages
	reqs := rs.waitForInbox(t, 6)
	time.Sleep(50 * time.Millisecond)
	if got := len(rs.inboxRequests()); got != 6 {
		t.Fatalf("Expected exactly 6 deliveries, got %d", got)
	}

	accepts, blogCreates, wikiCreates := 0, 0, 0
	for _, req := range reqs {
		var activity struct {
			Type   string `json:"type"`
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		}
		if err := json.Unmarshal(req.body, &activity); err != nil {
			t.Fatalf("Failed to parse delivery: %v", err)
		}
		switch activity.Type {
		case "Accept":
			accepts++
		case "Create":
			if strings.Contains(activity.Object.ID, "/blog/") {
				blogCreates++
			}
			if strings.Contains(activity.Object.ID, "/wiki/") {
				wikiCreates++
				if strings.Contains(activity.Object.ID, "/wiki/home") {
					t.Error("The wiki landing page must not be backfilled")
				}
			}
		default:
			t.Errorf("Unexpected activity type %s", activity.Type)
		}
	}
	if accepts != 1 || blogCreates != 3 || wikiCreates != 2 {
		t.Errorf("Expected 1 accept, 3 posts, 2 wiki pages; got %d/%d/%d", accepts, blogCreates, wikiCreates)
	}
}

func TestProcessFollowWithoutActor(t *testing.T) {
	h := newFederationHarness(t, false, false, nil)

	outcome := h.dispatch.Process(context.Background(), []byte(`{"id": "https://example.com/x", "type": "Follow"}`))
	if outcome.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", outcome.Status)
	}
	if outcome.Response["error"] != "follow without actor" {
		t.Errorf("Unexpected response: %v", outcome.Response)
	}
}

func TestProcessFollowKeepsFollowerWhenAcceptFails(t *testing.T) {
	rs := newRemoteServer(t)
	rs.setFailInbox(true)
	h := newFederationHarness(t, false, true, nil)

	bob := rs.actorURI("bob")
	outcome := h.dispatch.Process(context.Background(), followJSON(rs.server.URL+"/activities/1", bob))

	// Most servers retry the follow when no accept arrives, so the
	// follower stays recorded
	if outcome.Status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", outcome.Status)
	}
	if outcome.Response["accept_delivered"] != false {
		t.Errorf("Expected accept_delivered false, got %v", outcome.Response)
	}
	if !h.st.IsFollower(bob) {
		t.Error("Follower must be kept even when the accept fails")
	}
}

func TestProcessUndoFollowRemovesFollower(t *testing.T) {
	rs := newRemoteServer(t)
	h := newFederationHarness(t, false, false, nil)

	bob := rs.actorURI("bob")
	if err := h.st.AddFollower(bob); err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}

	outcome := h.dispatch.Process(context.Background(), undoFollowJSON(rs.server.URL+"/activities/1", bob))
	if outcome.Status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", outcome.Status)
	}
	if h.st.IsFollower(bob) {
		t.Error("Expected bob to be removed from followers")
	}

	count, err := h.st.ArchivedCount()
	if err != nil {
		t.Fatalf("ArchivedCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Unfollows are handled, not archived; got %d records", count)
	}
}

func TestProcessArchivesOtherActivities(t *testing.T) {
	h := newFederationHarness(t, false, false, nil)

	like := []byte(`{
		"id": "https://example.com/likes/1",
		"type": "Like",
		"actor": "https://example.com/users/bob",
		"object": "https://blog.example/blog/hello"
	}`)
	outcome := h.dispatch.Process(context.Background(), like)
	if outcome.Status != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", outcome.Status)
	}

	records, err := h.st.RecentActivities(10)
	if err != nil {
		t.Fatalf("RecentActivities failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 archived activity, got %d", len(records))
	}
	rec := records[0]
	if rec.Type != "Like" || rec.ActorURI != "https://example.com/users/bob" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.ObjectURI != "https://blog.example/blog/hello" {
		t.Errorf("Unexpected object uri: %s", rec.ObjectURI)
	}

	unknown := []byte(`{"id": "https://example.com/x", "type": "Move", "actor": "https://example.com/users/bob"}`)
	if outcome := h.dispatch.Process(context.Background(), unknown); outcome.Status != http.StatusAccepted {
		t.Errorf("Expected status 202 for unknown type, got %d", outcome.Status)
	}
	count, err := h.st.ArchivedCount()
	if err != nil {
		t.Fatalf("ArchivedCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 archived activities, got %d", count)
	}
}

func TestProcessUndoLikeIsArchivedNotHandled(t *testing.T) {
	h := newFederationHarness(t, false, false, nil)

	bob := "https://example.com/users/bob"
	if err := h.st.AddFollower(bob); err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}

	undoLike := []byte(fmt.Sprintf(`{
		"id": "https://example.com/undo/1",
		"type": "Undo",
		"actor": %q,
		"object": {"id": "https://example.com/likes/1", "type": "Like"}
	}`, bob))
	outcome := h.dispatch.Process(context.Background(), undoLike)
	if outcome.Status != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", outcome.Status)
	}
	if !h.st.IsFollower(bob) {
		t.Error("Undoing a like must not touch the follower list")
	}
}
