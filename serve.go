package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/content"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/metrics"
	"github.com/deemkeen/glyptodon/middleware"
	"github.com/deemkeen/glyptodon/state"
	"github.com/deemkeen/glyptodon/ui"
	"github.com/deemkeen/glyptodon/util"
	"github.com/deemkeen/glyptodon/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the federation server and the ssh admin console",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

const sshShutdownTimeout = 30 * time.Second

func runServe() error {
	confStore, err := util.LoadConfig()
	if err != nil {
		return err
	}
	conf := confStore.Conf()

	log.SetLevel(util.ParseLogLevel(conf.LogLevel))
	logger := log.Default()
	logger.Info("Starting up", "version", util.GetVersion(), "domain", conf.SslDomain, "config", confStore.Path())

	dataDir, err := util.ResolveDataDir(conf.DataDir)
	if err != nil {
		return err
	}

	// Without persisted keys this instance has no identity, so key
	// trouble at startup is fatal, not degraded service.
	keys := keystore.New(dataDir, confStore, logger.WithPrefix("keystore"))
	keys.OnKeysRefreshed(func() {
		metrics.SetKeysAvailable(true)
	})
	if err := keys.EnsureKeys(false); err != nil {
		return fmt.Errorf("key initialization failed: %w", err)
	}

	archive, err := db.Open(filepath.Join(dataDir, "activities.db"), logger.WithPrefix("archive"))
	if err != nil {
		return fmt.Errorf("could not open activity archive: %w", err)
	}
	defer archive.Close()

	st := state.Load(dataDir, archive, logger.WithPrefix("state"))

	store, err := content.NewStore(conf.ContentDir, logger.WithPrefix("content"))
	if err != nil {
		return fmt.Errorf("could not load content: %w", err)
	}

	actor := activitypub.NewActor(conf)
	resolver := activitypub.NewResolver(logger.WithPrefix("resolver"))
	directory := activitypub.NewDirectory(actor, keys, st, store, confStore)
	delivery := activitypub.NewDelivery(resolver, keys, st, directory, logger.WithPrefix("delivery"))
	dispatch := activitypub.NewDispatcher(st, delivery, directory, logger.WithPrefix("inbox"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every page that appears on disk goes out to the followers.
	store.OnNewItem(func(item domain.ContentItem) {
		go delivery.AnnounceItem(ctx, item)
	})
	go func() {
		if err := store.Watch(ctx); err != nil {
			logger.Error("Content watcher stopped", "err", err)
		}
	}()

	// SIGHUP re-reads the config file, so the wiki federation flag and
	// the log level apply without a restart.
	confStore.OnChange(func(c util.Conf) {
		log.SetLevel(util.ParseLogLevel(c.LogLevel))
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := confStore.Reload(); err != nil {
				logger.Error("Config reload failed", "err", err)
			}
		}
	}()

	sshServer, err := newSSHServer(confStore, ui.Deps{
		Actor:    actor,
		Keys:     keys,
		State:    st,
		Dir:      directory,
		Delivery: delivery,
		Resolver: resolver,
		Log:      logger.WithPrefix("console"),
	})
	if err != nil {
		return fmt.Errorf("could not build ssh server: %w", err)
	}

	sshErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ssh admin console", "host", conf.Host, "port", conf.SshPort)
		if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			sshErr <- err
			return
		}
		sshErr <- nil
	}()

	webErr := make(chan error, 1)
	go func() {
		webErr <- web.Run(ctx, web.Deps{
			Conf:     confStore,
			Dir:      directory,
			Dispatch: dispatch,
			Content:  store,
			Keys:     keys,
			DataDir:  dataDir,
			Log:      logger.WithPrefix("web"),
		})
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-webErr:
		stop()
		if err != nil {
			logger.Error("HTTP server failed", "err", err)
		}
	case err := <-sshErr:
		stop()
		if err != nil {
			logger.Error("SSH server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sshShutdownTimeout)
	defer cancel()
	if err := sshServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		logger.Error("SSH shutdown failed", "err", err)
	}
	return nil
}

func newSSHServer(confStore *util.ConfigStore, deps ui.Deps) (*ssh.Server, error) {
	conf := confStore.Conf()
	return wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Host, conf.SshPort)),
		wish.WithHostKeyPath(util.ResolveFilePathWithSubdir(".ssh", "hostkey")),
		wish.WithPublicKeyAuth(middleware.PublicKeyAuth(confStore)),
		wish.WithMiddleware(
			middleware.MainTui(deps),
			middleware.AuthMiddleware(),
			logging.Middleware(), // last middleware executed first
		),
	)
}
