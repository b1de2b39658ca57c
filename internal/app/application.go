package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classhub/internal/api"
	"classhub/internal/auth"
	"classhub/internal/config"
	"classhub/internal/coordinator"
	"classhub/internal/database"
	"classhub/internal/media"
	"classhub/internal/session"
	ws "classhub/internal/websocket"
	pkgdb "classhub/pkg/database"
)

// Application wires the components together and owns their lifecycle.
// Construction order follows the dependency graph: database, stores,
// session manager, registry, coordinator, transport handlers, HTTP
// server.
type Application struct {
	cfg *config.Config
	log *logrus.Logger

	db          *database.Manager
	coordinator *coordinator.Coordinator
	server      *http.Server
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config, log *logrus.Logger) (*Application, error) {
	dbConfig := pkgdb.DefaultConfig(cfg.Database.Path)
	db, err := database.NewManager(dbConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := pkgdb.NewMigrationManager(db.GetDB()).ApplyMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := pkgdb.NewSchemaValidator(db.GetDB()).ValidateTablesExist(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	audio, err := media.NewStore(cfg.Media.AudioDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audio store: %w", err)
	}

	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	sessions := session.NewManager(db, log)
	registry := ws.NewRegistry()
	coord := coordinator.New(registry, db, audio, cfg.Coordinator, logrus.NewEntry(log))

	wsHandler := ws.NewHandler(registry, coord, verifier, sessions, cfg.WebSocket, logrus.NewEntry(log))
	restServer := api.NewServer(sessions, db, verifier, cfg.Coordinator, logrus.NewEntry(log))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/ws", wsHandler.ServeWS)
	restServer.Register(engine, cfg.Media.AudioDir)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:         cfg,
		log:         log,
		db:          db,
		coordinator: coord,
		server:      server,
	}, nil
}

// Start serves HTTP until the listener fails or Stop is called.
func (a *Application) Start() error {
	a.log.WithField("addr", a.server.Addr).Info("server starting")

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains the HTTP server and releases resources in reverse
// dependency order.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("graceful shutdown failed")
	}

	a.coordinator.Shutdown()

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.log.Info("server stopped")
	return nil
}
