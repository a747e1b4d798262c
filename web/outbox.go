package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleOutbox returns the OrderedCollection of Create activities for
// every federated page, so remote servers can browse posts without
// following first.
func handleOutbox(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", contentTypeActivityJSON)
		c.JSON(http.StatusOK, deps.Dir.OutboxDocument())
	}
}

func handleFollowers(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", contentTypeActivityJSON)
		c.JSON(http.StatusOK, deps.Dir.FollowersDocument())
	}
}

func handleFollowing(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", contentTypeActivityJSON)
		c.JSON(http.StatusOK, deps.Dir.FollowingDocument())
	}
}

// handleInboxSummary answers GET on the inbox with a small status
// document. The inbox itself only takes POSTs.
func handleInboxSummary(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Dir.InboxSummary())
	}
}
