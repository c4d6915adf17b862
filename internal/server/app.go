// Package server initializes and runs the StayHub API server: database and
// migrations, the blocked-account cache, the event publisher, the business
// services, the HTTP endpoint, and the refresh-row janitor.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/blocklist"
	"github.com/dpavlenko/stayhub/internal/server/config"
	"github.com/dpavlenko/stayhub/internal/server/events"
	"github.com/dpavlenko/stayhub/internal/server/httpapi"
	"github.com/dpavlenko/stayhub/internal/server/repositories/repomanager"
	"github.com/dpavlenko/stayhub/internal/server/services"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	publisher events.Publisher
	tokens    *services.TokenService
	users     *services.UserService
	listings  *services.ListingService
	httpsrv   *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	bl, err := blocklist.NewRedisBlocklist(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp init error: %w", err)
	}

	tokens := services.NewTokenService(db, rm, bl, pub, logger, cfg)
	users := services.NewUserService(db, rm, tokens, logger, cfg)
	listings := services.NewListingService(db, rm)

	httpsrv := httpapi.NewServer(cfg.EndpointAddr, []byte(cfg.SecretKey), users, tokens, listings, bl, logger)

	return &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		publisher: pub,
		tokens:    tokens,
		users:     users,
		listings:  listings,
		httpsrv:   httpsrv,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runJanitor sweeps expired refresh rows on the configured interval until
// ctx is cancelled. Replay detection does not depend on the sweep; it only
// keeps the table from growing without bound.
func (app *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.tokens.SweepExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "refresh token sweep failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired refresh tokens swept", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpsrv.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.publisher.Close(); err != nil {
		app.logger.Error(ctx, "error closing publisher", "error", err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err.Error())
	}
}
