package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleInboxPost feeds the raw activity bytes to the dispatcher and
// maps its outcome onto the response. The body is captured before any
// parsing so future signature verification sees the exact bytes.
func handleInboxPost(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			deps.Log.Warn("Could not read inbox body", "err", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity"})
			return
		}

		outcome := deps.Dispatch.Process(c.Request.Context(), body)
		c.JSON(outcome.Status, outcome.Response)
	}
}
