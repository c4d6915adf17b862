// Package cli is the interactive StayHub client. It drives the API client
// from a small REPL and reacts to forced logouts, whether they arrive as a
// 401 or as a push notification.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dpavlenko/stayhub/internal/client/api"
	"github.com/dpavlenko/stayhub/internal/client/config"
	"github.com/dpavlenko/stayhub/internal/client/notify"
	"github.com/dpavlenko/stayhub/internal/client/session"
	"github.com/dpavlenko/stayhub/internal/logging"
)

type App struct {
	config   *config.Config
	client   *api.Client
	store    session.Store
	db       *sql.DB
	logger   logging.Logger
	reader   *bufio.Reader
	userName string

	stopListener context.CancelFunc
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	logger := logging.NewTextLogger(os.Stderr)

	store, db, err := session.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	app := &App{
		config: c,
		store:  store,
		db:     db,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
	}

	app.client = api.New(c.ServerURL, c.RequestTimeout, store, logger,
		api.WithForcedLogoutHook(app.onForcedLogout))

	return app, nil
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) onForcedLogout(reason string) {
	if a.userName != "" {
		log.Printf("Session ended by server (%s), you have been logged out", reason)
	}
	a.userName = ""
	if a.stopListener != nil {
		a.stopListener()
		a.stopListener = nil
	}
}

// startListener subscribes to termination pushes for the logged-in user.
// Without a broker the client still learns about revocation, just later,
// from its next 401.
func (a *App) startListener(ctx context.Context, userID string) {
	if a.config.AMQPURL == "" {
		return
	}

	listener, err := notify.NewListener(a.config.AMQPURL, a.logger)
	if err != nil {
		log.Printf("notification listener unavailable: %s", err.Error())
		return
	}

	listenerCtx, cancel := context.WithCancel(ctx)
	a.stopListener = cancel

	go func() {
		defer listener.Close()
		if err := listener.Run(listenerCtx, userID, func(reason string) {
			a.client.ForceLogout(listenerCtx, reason)
		}); err != nil {
			a.logger.Error(listenerCtx, "notification listener stopped", "error", err.Error())
		}
	}()
}

func (a *App) Run(ctx context.Context) {
	defer a.db.Close()
	a.Root(ctx)
}
