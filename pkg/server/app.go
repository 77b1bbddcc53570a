package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "LiqFlow/internal/domain/repository"
	"LiqFlow/internal/usecase"
	pkgch "LiqFlow/pkg/clickhouse"
	"LiqFlow/pkg/config"
	xhttp "LiqFlow/pkg/http"
	applogger "LiqFlow/pkg/logger"
)

// App encapsulates the entire application lifecycle: the periodic analysis
// runner and the HTTP results API.
type App struct {
	cfg        *config.Config
	pipeline   *usecase.Pipeline
	view       *usecase.ResultsView
	source     domrepo.PanelSource
	publisher  domrepo.SignalPublisher
	chClient   *pkgch.Client
	handler    xhttp.Handler
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	view *usecase.ResultsView,
	source domrepo.PanelSource,
	publisher domrepo.SignalPublisher,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		pipeline:  pipeline,
		view:      view,
		source:    source,
		publisher: publisher,
		chClient:  chClient,
		handler:   handler,
		l:         l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	go a.runLoop(ctx)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// runLoop triggers analysis runs on the configured interval. With no
// interval the pipeline runs once and the process keeps serving results.
func (a *App) runLoop(ctx context.Context) {
	if a.cfg.Analysis.RunOnStart || a.cfg.Analysis.Interval <= 0 {
		a.runOnce(ctx)
	}
	if a.cfg.Analysis.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.Analysis.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	run, err := a.pipeline.Run(ctx)
	if err != nil {
		a.l.Error("analysis run failed", applogger.Error(err))
		return
	}
	// The API serves the new run as soon as the cache drops the old one.
	a.view.Invalidate(ctx)
	a.l.Info("analysis run published",
		applogger.String("run_id", run.RunID),
		applogger.Int("symbols", len(run.Symbols)),
	)
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	// Flush the log collector before its publisher closes.
	a.l.RemoveCollector()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.l.Warn("panel source close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
