package domain

const (
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
	SecurityContext        = "https://w3id.org/security/v1"
	PublicAudience         = "https://www.w3.org/ns/activitystreams#Public"
)

// Person is the actor document served at /actor
type Person struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Summary           string      `json:"summary"`
	URL               string      `json:"url"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox"`
	Followers         string      `json:"followers"`
	Following         string      `json:"following"`
	ManuallyApproves  bool        `json:"manuallyApprovesFollowers"`
	Discoverable      bool        `json:"discoverable"`
	Published         string      `json:"published,omitempty"`
	Endpoints         Endpoints   `json:"endpoints"`
	PublicKey         PublicKey   `json:"publicKey"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox"`
}

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Webfinger is the JRD document served at /.well-known/webfinger
type Webfinger struct {
	Subject string          `json:"subject"`
	Links   []WebfingerLink `json:"links"`
}

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

// OrderedCollection serves the outbox, followers and following endpoints
type OrderedCollection struct {
	Context      interface{}   `json:"@context"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	TotalItems   int           `json:"totalItems"`
	OrderedItems []interface{} `json:"orderedItems"`
}

// Activity is an outbound activity document. Context stays empty on
// activities embedded inside another document.
type Activity struct {
	Context   interface{} `json:"@context,omitempty"`
	ID        string      `json:"id,omitempty"`
	Type      string      `json:"type"`
	Actor     string      `json:"actor"`
	Published string      `json:"published,omitempty"`
	To        []string    `json:"to,omitempty"`
	Cc        []string    `json:"cc,omitempty"`
	Object    interface{} `json:"object,omitempty"`
}

// Article is the ActivityStreams object for a blog post or wiki page
type Article struct {
	Context      interface{} `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Name         string      `json:"name"`
	Content      string      `json:"content"`
	Summary      string      `json:"summary,omitempty"`
	URL          string      `json:"url"`
	AttributedTo string      `json:"attributedTo"`
	Published    string      `json:"published"`
	To           []string    `json:"to"`
	Cc           []string    `json:"cc"`
	Tag          []HashTag   `json:"tag,omitempty"`
}

type HashTag struct {
	Type string `json:"type"`
	Name string `json:"name"`
}
