// Package server wires the chat server together: storage, cache, the
// realtime gateway and the gRPC pull API, and runs them until a signal
// arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/cache"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/gateway"
	"github.com/dmitrijs2005/gophchat/internal/server/ordering"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophchat/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// drainGrace is added to the persist timeout when waiting for websocket
// connections to finish their teardown.
const drainGrace = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	cache   cache.Cache
	gateway *gateway.Gateway
	http    *gateway.HTTPServer
	grpc    *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds every component.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var ch cache.Cache
	if c.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, c.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		ch = rc
	} else {
		ch = cache.NewMemoryCache()
	}

	app := &App{config: c, logger: logger, db: db, cache: ch}
	app.wire(rm)
	return app, nil
}

func (app *App) wire(rm repomanager.RepositoryManager) {
	c, db, logger := app.config, app.db, app.logger

	registry := session.NewRegistry()
	rooms := session.NewRooms()
	hub := realtime.NewHub(registry, logger)
	view := ordering.NewView(rm.Conversations(db).ListForUser)
	verifier := auth.NewVerifier([]byte(c.SecretKey))

	directory := services.NewUserDirectory(db, rm, app.cache, c.UserCacheTTL, logger)
	presence := services.NewPresenceTracker(db, rm, hub, c.PersistTimeout, logger)
	roomSvc := services.NewRoomService(db, rm, rooms, logger)
	messages := services.NewMessageService(db, rm, hub, view, directory, c.PersistTimeout, c.RecallWindow, logger)
	unread := services.NewUnreadService(db, rm)
	conversations := services.NewConversationService(db, rm, hub, view, directory, presence, roomSvc, logger)
	blobs := services.NewBlobService(c)

	app.gateway = gateway.NewGateway(gateway.Dependencies{
		Auth:     verifier,
		Users:    directory,
		Registry: registry,
		Rooms:    roomSvc,
		Messages: messages,
		Presence: presence,
		Unread:   unread,
	}, c.SendRateLimit, c.SendRateBurst, logger)

	app.http = gateway.NewHTTPServer(c.EndpointAddrHTTP, gateway.NewRouter(app.gateway, db), logger)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, gs.Services{
		Conversations: conversations,
		Messages:      messages,
		Unread:        unread,
		Blobs:         blobs,
	}, verifier)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves both endpoints until a signal arrives or one of them fails.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.http.Run(gctx)
	})
	g.Go(func() error {
		return app.grpc.Run(gctx)
	})
	g.Go(func() error {
		// hijacked websocket connections outlive http.Server.Shutdown
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), app.config.PersistTimeout+drainGrace)
		defer cancel()
		if err := app.gateway.Shutdown(sctx, session.CloseGoingAway, "server shutting down"); err != nil {
			app.logger.Warn(sctx, "websocket drain incomplete", "open", app.gateway.Connections(), "error", err)
		}
		return nil
	})

	err := g.Wait()

	if cerr := app.cache.Close(); cerr != nil {
		app.logger.Warn(ctx, "cache close failed", "error", cerr)
	}
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "db close failed", "error", cerr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
