package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleWebfinger resolves acct: resources to the local actor. The
// match is exact, anything but the configured account is a 404.
func handleWebfinger(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		wf, err := deps.Dir.Webfinger(c.Query("resource"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		c.Header("Content-Type", "application/jrd+json; charset=utf-8")
		c.JSON(http.StatusOK, wf)
	}
}
