//go:build wireinject
// +build wireinject

package di

import (
	"LiqFlow/pkg/config"
	"LiqFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvidePanelSource,
		ProvideResultStore,
		ProvideSignalPublisher,

		// Analysis engines
		ProvideEngineer,
		ProvideCorrelationEngine,
		ProvidePredictionEngine,
		ProvideBacktestEngine,
		ProvideAnalyzer,

		// Use cases
		ProvidePipeline,
		ProvideResultsView,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
