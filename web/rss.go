package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
)

// buildFeed renders the full content list, blog and wiki merged
// newest-first, into a gorilla feed. Both the RSS and the JSON Feed
// endpoints serialize this one structure.
func buildFeed(deps Deps) *feeds.Feed {
	actor := deps.Dir.Actor()

	feed := &feeds.Feed{
		Title:       actor.DisplayName,
		Link:        &feeds.Link{Href: actor.BaseURL},
		Description: actor.Summary,
		Author:      &feeds.Author{Name: actor.DisplayName, Email: actor.Handle()},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, item := range deps.Content.ListItems() {
		url := item.URL(actor.BaseURL)
		feedItems = append(feedItems,
			&feeds.Item{
				Id:          url,
				Title:       item.Title,
				Link:        &feeds.Link{Href: url},
				Description: item.Summary,
				Content:     item.HTML,
				Author:      &feeds.Author{Name: actor.DisplayName, Email: actor.Handle()},
				Created:     item.Published,
			})
	}

	feed.Items = feedItems
	return feed
}

func handleRSS(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := buildFeed(deps).ToRss()
		if err != nil {
			deps.Log.Error("Could not render RSS feed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feed unavailable"})
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(out))
	}
}

func handleJSONFeed(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := buildFeed(deps).ToJSON()
		if err != nil {
			deps.Log.Error("Could not render JSON feed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feed unavailable"})
			return
		}
		c.Data(http.StatusOK, "application/feed+json; charset=utf-8", []byte(out))
	}
}
