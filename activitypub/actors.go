package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/util"
	"github.com/patrickmn/go-cache"
)

// RemoteActor is the subset of a remote actor document needed to
// deliver activities.
type RemoteActor struct {
	IRI          string
	Inbox        string
	SharedInbox  string
	Username     string
	Domain       string
	PublicKeyPem string
}

// actorResponse represents the JSON structure of a remote actor
type actorResponse struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Inbox             string `json:"inbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

const actorCacheTTL = 24 * time.Hour

// Resolver fetches remote actor documents and caches them so repeated
// deliveries to the same actor skip the lookup.
type Resolver struct {
	client *http.Client
	cache  *cache.Cache
	log    *log.Logger
	ua     string
}

func NewResolver(logger *log.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  cache.New(actorCacheTTL, time.Hour),
		log:    logger,
		ua:     util.UserAgent(),
	}
}

// Resolve returns the actor behind actorURI, from cache while fresh.
// Failed fetches are never cached.
func (r *Resolver) Resolve(ctx context.Context, actorURI string) (*RemoteActor, error) {
	if cached, ok := r.cache.Get(actorURI); ok {
		return cached.(*RemoteActor), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", r.ua)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var doc actorResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	// An actor we cannot deliver to is useless to us
	if doc.ID == "" || doc.Inbox == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	domainName, err := extractDomain(doc.ID)
	if err != nil {
		return nil, err
	}

	actor := &RemoteActor{
		IRI:          doc.ID,
		Inbox:        doc.Inbox,
		SharedInbox:  doc.Endpoints.SharedInbox,
		Username:     doc.PreferredUsername,
		Domain:       domainName,
		PublicKeyPem: doc.PublicKey.PublicKeyPem,
	}

	r.cache.Set(actorURI, actor, cache.DefaultExpiration)
	r.log.Debug("Resolved remote actor", "actor", doc.ID, "inbox", doc.Inbox)
	return actor, nil
}

// extractDomain extracts the domain from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}
	return parsed.Host, nil
}

// webfingerResponse is the JRD document a remote webfinger endpoint
// returns for an acct: resource.
type webfingerResponse struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// ResolveHandle turns a user@domain handle into the actor URI its
// webfinger endpoint advertises. Raw actor URIs pass through untouched
// so both forms work as follow targets.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if strings.HasPrefix(handle, "https://") || strings.HasPrefix(handle, "http://") {
		return handle, nil
	}

	handle = strings.TrimPrefix(handle, "@")
	parts := strings.Split(handle, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid handle: %q", handle)
	}

	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s@%s",
		parts[1], parts[0], parts[1])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wfURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/jrd+json")
	req.Header.Set("User-Agent", r.ua)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webfinger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webfinger failed with status: %d", resp.StatusCode)
	}

	var doc webfingerResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to parse webfinger JSON: %w", err)
	}
	return pickActorLink(doc, handle)
}

// pickActorLink selects the self link pointing at the ActivityPub
// representation of the account.
func pickActorLink(doc webfingerResponse, handle string) (string, error) {
	for _, link := range doc.Links {
		if link.Rel == "self" && link.Type == "application/activity+json" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("no ActivityPub actor link for %s", handle)
}
