package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleActor serves the ActivityPub Person document. Without usable
// keys there is no publicKeyPem to publish, so the document is
// withheld rather than served incomplete.
func handleActor(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := deps.Dir.ActorDocument()
		if err != nil {
			deps.Log.Error("Actor document unavailable", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "actor keys not ready"})
			return
		}
		c.Header("Content-Type", contentTypeActivityJSON)
		c.JSON(http.StatusOK, doc)
	}
}
