package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/sushistage/internal/config"
	"github.com/vovakirdan/sushistage/internal/core"
	applog "github.com/vovakirdan/sushistage/internal/log"
	"github.com/vovakirdan/sushistage/internal/session"
	"github.com/vovakirdan/sushistage/internal/store"
	"github.com/vovakirdan/sushistage/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/sushistage/internal/transport/http"
	"github.com/vovakirdan/sushistage/internal/transport/ws"
)

// App wires together the membership store, identity cache and transports.
type App struct {
	members         *core.Store
	identities      *sqlite.SQLiteStore
	cache           *store.Cache
	conn            *ws.Conn
	server          *stdhttp.Server
	clearInterval   time.Duration
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	// Initialize identity store
	identities, err := sqlite.New(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("init identity store: %w", err)
	}
	logger.Info().Str("identity_path", cfg.IdentityPath).Msg("identity store initialized")

	cache := store.NewCache(identities, store.DefaultSlot)
	members := core.NewStore(cfg.SeedRooms(), core.Options{
		UniqueBy:           policy,
		SurfaceUnknownRoom: cfg.SurfaceUnknownRoom,
		Identity:           cache,
		Logger:             applog.Component(logger, "store"),
	})

	a := &App{
		members:         members,
		identities:      identities,
		cache:           cache,
		clearInterval:   cfg.ClearInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	if cfg.ServerURL != "" {
		a.conn = ws.New(ws.Options{
			URL:          cfg.ServerURL,
			DialTimeout:  cfg.DialTimeout,
			ReconnectMin: cfg.ReconnectMin,
			ReconnectMax: cfg.ReconnectMax,
			Logger:       applog.Component(logger, "ws"),
		})
		if _, err := session.New(members, a.conn, applog.Component(logger, "session")); err != nil {
			_ = identities.Close()
			return nil, fmt.Errorf("init session: %w", err)
		}
	} else {
		logger.Info().Msg("no server_url configured, running local-only")
	}

	if cfg.StatusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		a.server = transporthttp.NewServer(members, *cfg, applog.Component(logger, "http"))
	}

	return a, nil
}

// Store returns the membership store.
func (a *App) Store() *core.Store {
	return a.members
}

// Connected reports whether the real-time connection is up.
func (a *App) Connected() bool {
	return a.conn != nil && a.conn.Connected()
}

// Forget drops the cached identity so the next start asks for a name again.
func (a *App) Forget(ctx context.Context) error {
	return a.cache.Forget(ctx)
}

// Run starts the background workers and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.members.RunDecay(gctx, a.clearInterval)
		return nil
	})

	if a.conn != nil {
		g.Go(func() error {
			return a.conn.Run(gctx)
		})
	}

	if a.server != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.server.Addr).Msg("status server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down status server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes the connection and database.
func (a *App) cleanup() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.identities != nil {
		if err := a.identities.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close identity store")
		} else {
			a.log.Info().Msg("identity store closed")
		}
	}
}
