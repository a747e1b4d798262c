package web

import (
	"net/http"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/gin-gonic/gin"
)

// handleArticle serves a single page as an ActivityPub Article object,
// the target of the object IRIs the outbox hands out.
func handleArticle(deps Deps, kind domain.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, ok := deps.Content.Get(kind, c.Param("slug"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
			return
		}
		c.Header("Content-Type", contentTypeActivityJSON)
		c.JSON(http.StatusOK, deps.Dir.ArticleDocument(item))
	}
}
