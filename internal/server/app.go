// Package server wires configuration, storage, services and the gRPC
// endpoint together and runs them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/keyescrow/internal/cryptox"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	"github.com/dmitrijs2005/keyescrow/internal/server/config"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keyescrow/internal/server/services"
	"github.com/dmitrijs2005/keyescrow/internal/server/storage"

	gs "github.com/dmitrijs2005/keyescrow/internal/server/grpc"
)

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	actorService      *services.ActorService
	repositoryService *services.RepositoryService
	cipherService     *services.CipherService
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	app, err := newApp(ctx, c, db, repomanager.NewPostgresRepositoryManager(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) (*App, error) {
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	fs, err := storage.NewFilesystemStore(c.RepositoriesRoot, c.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("filesystem init error: %w", err)
	}

	objects, err := newObjectStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("cipher store init error: %w", err)
	}

	store := services.NewStore(db, m, objects)
	gate := services.NewAuthorizationGate(store, store, fs, store)

	return &App{
		config:            c,
		logger:            logger,
		db:                db,
		actorService:      services.NewActorService(db, m, c, logger),
		repositoryService: services.NewRepositoryService(db, m, fs, logger),
		cipherService:     services.NewCipherService(gate, fs, objects, store, cryptox.NewEnvelope().WithMaxPlaintext(c.MaxArchiveSize), c.WorkTimeout, logger),
	}, nil
}

func newObjectStore(ctx context.Context, c *config.Config) (storage.ObjectStore, error) {
	if c.CipherStore == config.CipherStoreS3 {
		return storage.NewS3ObjectStore(ctx, storage.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}
	return storage.NewLocalObjectStore(c.CipherRoot)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger,
		app.actorService, app.repositoryService, app.cipherService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server stopped", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddrGRPC, "cipher_store", app.config.CipherStore)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
