// Package serverapp owns the joinwise server lifecycle: resource
// acquisition, the HTTP surface, and ordered shutdown.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"joinwise/internal/config"
	"joinwise/internal/engine"
	"joinwise/internal/logging"
	"joinwise/internal/observability"
)

// App owns runtime resources for the joinwise server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	engineMetrics  *observability.EngineMetrics

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	engine *engine.Engine

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}
