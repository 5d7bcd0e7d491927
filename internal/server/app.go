// Package server initializes and runs the poll application server.
// It opens the database, applies migrations, wires services and starts
// the HTTP API with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/config"
	"github.com/dmitrijs2005/pollkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pollkeeper/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	userService   *services.UserService
	pollService   *services.PollService
	voteService   *services.VoteService
	exportService *services.ExportService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	s := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(s)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := pingWithRetry(ctx, db); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(db, rm, cfg)
	ps := services.NewPollService(db, rm, logger)
	vs := services.NewVoteService(db, rm, logger)
	es := services.NewExportService(db, rm, vs, cfg)

	return &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		userService:   us,
		pollService:   ps,
		voteService:   vs,
		exportService: es,
	}, nil
}

// pingWithRetry waits for the database to become reachable, backing off
// exponentially up to a minute. Useful when the server starts before the
// database container is ready.
func pingWithRetry(ctx context.Context, db *sql.DB) error {
	backoff := retry.WithMaxDuration(time.Minute, retry.NewExponential(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.config.SecretKey, app.logger,
		app.userService, app.pollService, app.voteService, app.exportService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
