package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/config"
	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/janitor"
	"github.com/vovakirdan/brandchat-server/internal/service/favorites"
	"github.com/vovakirdan/brandchat-server/internal/store"
	"github.com/vovakirdan/brandchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/brandchat-server/internal/transport/http"
	"github.com/vovakirdan/brandchat-server/internal/uploads"
)

// runner is a bus backend that consumes publications from other instances.
type runner interface {
	Run(ctx context.Context) error
}

// App wires together core and transport layers.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	bus             bus.Bus
	janitor         *janitor.Janitor
	janitorInterval time.Duration
	store           store.Store
	closers         []func()
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		janitorInterval: cfg.JanitorInterval,
		store:           st,
		log:             logger,
	}

	b, err := a.newBus(cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	a.bus = b

	dir, err := uploads.NewDir(cfg.UploadDir)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init uploads: %w", err)
	}

	authService := auth.NewService(st, JWTConfig(cfg))
	chat := core.NewService(st, b, core.Options{MaxTextLength: cfg.MaxTextLength, Files: dir}, logger)

	a.janitor = janitor.New(st, dir, cfg.AttachmentLifetime, logger)
	a.server = transporthttp.NewServer(transporthttp.Deps{
		Auth:      authService,
		Gate:      core.NewGate(st, b, logger),
		Chat:      chat,
		Favorites: favorites.New(st),
		Store:     st,
		Uploads:   dir,
	}, cfg, logger)

	return a, nil
}

// OpenStore opens the SQLite database at cfg.DatabasePath.
func OpenStore(cfg config.Config) (*sqlite.SQLiteStore, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}

// JWTConfig derives token settings from cfg.
func JWTConfig(cfg config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

func (a *App) newBus(cfg config.Config) (bus.Bus, error) {
	switch cfg.BusBackend {
	case "", config.BusMemory:
		a.log.Info().Msg("using in-memory bus")
		return bus.NewMemoryBus(a.log), nil

	case config.BusRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })

		b := bus.NewRedisBus(client, cfg.RedisChannel, a.log)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.log.Info().Str("addr", cfg.RedisAddr).Msg("using redis bus")
		return b, nil

	case config.BusNATS:
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("brandchat-server"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				a.log.Warn().Err(err).Msg("nats disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				a.log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
		}
		a.closers = append(a.closers, func() { _ = nc.Drain() })
		a.log.Info().Str("url", cfg.NATSURL).Msg("using nats bus")
		return bus.NewNATSBus(nc, cfg.NATSSubject, a.log), nil

	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.BusBackend)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting http server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// waits for websocket sessions to end before cleanup closes the store
		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	if r, ok := a.bus.(runner); ok {
		g.Go(func() error { return r.Run(gctx) })
	}

	g.Go(func() error { return a.janitor.Run(gctx, a.janitorInterval) })

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
		a.store = nil
	}
}
