package web

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/content"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

const contentTypeActivityJSON = "application/activity+json; charset=utf-8"

// Deps collects everything the HTTP surface serves from.
type Deps struct {
	Conf     *util.ConfigStore
	Dir      *activitypub.Directory
	Dispatch *activitypub.Dispatcher
	Content  *content.Store
	Keys     *keystore.KeyStore
	DataDir  string
	Log      *log.Logger
}

// NewRouter wires the federation, feed and operational endpoints.
func NewRouter(deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/.well-known/webfinger", handleWebfinger(deps))
	g.GET("/actor", handleActor(deps))
	g.GET("/actor.json", handleActor(deps))
	g.GET("/outbox", handleOutbox(deps))
	g.GET("/outbox.json", handleOutbox(deps))
	g.GET("/followers", handleFollowers(deps))
	g.GET("/followers.json", handleFollowers(deps))
	g.GET("/following", handleFollowing(deps))
	g.GET("/following.json", handleFollowing(deps))
	g.GET("/inbox", handleInboxSummary(deps))

	// Stricter rate limit for inbound federation: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for ActivityPub activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, handleInboxPost(deps))

	g.GET("/blog/:slug", handleArticle(deps, domain.BlogPost))
	g.GET("/wiki/:slug", handleArticle(deps, domain.WikiPage))

	g.GET("/feed", handleRSS(deps))
	g.GET("/feed.json", handleJSONFeed(deps))

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.GET("/healthz", handleHealth(deps))

	return g
}

// Run serves the router until ctx is cancelled. With autoSsl set the
// server terminates TLS itself via Let's Encrypt, otherwise it listens
// on the configured plain HTTP port.
func Run(ctx context.Context, deps Deps) error {
	conf := deps.Conf.Conf()
	srv := &http.Server{Handler: NewRouter(deps)}
	errCh := make(chan error, 1)

	if conf.AutoSsl {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(conf.SslDomain),
			Cache:      autocert.DirCache(filepath.Join(deps.DataDir, "autocert")),
		}
		srv.Addr = ":https"
		srv.TLSConfig = manager.TLSConfig()

		// Port 80 answers the ACME http-01 challenge and redirects
		// everything else to https.
		go func() {
			if err := http.ListenAndServe(":http", manager.HTTPHandler(nil)); err != nil {
				deps.Log.Error("ACME challenge listener failed", "err", err)
			}
		}()

		deps.Log.Info("Starting HTTPS server", "domain", conf.SslDomain)
		go func() { errCh <- srv.ListenAndServeTLS("", "") }()
	} else {
		srv.Addr = fmt.Sprintf(":%d", conf.HttpPort)
		deps.Log.Info("Starting HTTP server", "port", conf.HttpPort)
		go func() { errCh <- srv.ListenAndServe() }()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func handleHealth(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": util.GetVersion(),
			"keys":    deps.Keys.Available(),
		})
	}
}
