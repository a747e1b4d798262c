package domain

import (
	"fmt"
	"time"
)

type ContentKind string

const (
	BlogPost ContentKind = "blog"
	WikiPage ContentKind = "wiki"
)

// ContentItem is a published blog post or wiki page, read-only to the
// federation side
type ContentItem struct {
	Slug      string
	Title     string
	HTML      string
	Summary   string
	Published time.Time
	Tags      []string
	Category  string
	Kind      ContentKind
}

// IsWikiHome reports whether the item is the wiki landing page, which is
// never federated
func (c *ContentItem) IsWikiHome() bool {
	if c.Kind != WikiPage {
		return false
	}
	return c.Slug == "home" || c.Slug == "index"
}

// URL returns the canonical item URL under the given base,
// e.g. https://example.com/blog/my-post
func (c *ContentItem) URL(baseURL string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, c.Kind, c.Slug)
}

func (c *ContentItem) ToString() string {
	return fmt.Sprintf("\n\tSlug: %s \n\tTitle: %s \n\tKind: %s \n\tPublished: %s)", c.Slug, c.Title, c.Kind, c.Published)
}
