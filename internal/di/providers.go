package di

import (
	"context"
	"fmt"
	"time"

	"LiqFlow/internal/analysis"
	"LiqFlow/internal/backtest"
	"LiqFlow/internal/correlation"
	"LiqFlow/internal/domain/models"
	"LiqFlow/internal/domain/repository"
	"LiqFlow/internal/features"
	"LiqFlow/internal/handler/api"
	"LiqFlow/internal/prediction"
	internalrepo "LiqFlow/internal/repository"
	"LiqFlow/internal/usecase"
	pkgcache "LiqFlow/pkg/cache"
	pkgch "LiqFlow/pkg/clickhouse"
	"LiqFlow/pkg/config"
	xhttp "LiqFlow/pkg/http"
	pkgkafka "LiqFlow/pkg/kafka"
	applogger "LiqFlow/pkg/logger"
	"LiqFlow/pkg/metrics"
	"LiqFlow/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when no host
// is configured (CSV-only deployments without persistence).
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCache creates the results cache. With Redis enabled it layers an
// in-process cache over Redis; otherwise it falls back to memory only.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("liqflow"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePanelSource selects the configured panel source.
func ProvidePanelSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.PanelSource, error) {
	switch cfg.Source.Type {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse source requires clickhouse.host")
		}
		src := internalrepo.NewCHPanelSource(ch)
		src.SetLogger(l)
		return src, nil
	default:
		return internalrepo.NewCSVPanelSource(cfg.Source.DataDir, l), nil
	}
}

// ProvideResultStore creates the ClickHouse result store and ensures its
// schema. Nil when persistence is not configured.
func ProvideResultStore(ch *pkgch.Client, l *applogger.Logger) (repository.ResultStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHResultStore(ch)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("result store schema: %w", err)
	}
	return store, nil
}

// ProvideSignalPublisher creates the Kafka signal publisher, nil without a
// producer.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideEngineer creates the feature engineer.
func ProvideEngineer(cfg *config.Config, l *applogger.Logger) *features.Engineer {
	return features.NewEngineer(l, features.WithLagWeeks(cfg.Analysis.LagWeeks))
}

// ProvideCorrelationEngine creates the correlation engine.
func ProvideCorrelationEngine(l *applogger.Logger) *correlation.Engine {
	return correlation.NewEngine(l)
}

// ProvidePredictionEngine creates the prediction engine from config, falling
// back to defaults for zero values.
func ProvidePredictionEngine(cfg *config.Config, l *applogger.Logger) *prediction.Engine {
	pc := prediction.DefaultConfig()
	if cfg.Prediction.TrainRatio > 0 {
		pc.TrainRatio = cfg.Prediction.TrainRatio
	}
	if cfg.Prediction.MinTrainRows > 0 {
		pc.MinTrainRows = cfg.Prediction.MinTrainRows
	}
	if cfg.Prediction.SparseFloor > 0 {
		pc.SparseFloor = cfg.Prediction.SparseFloor
	}
	if cfg.Prediction.Seed != 0 {
		pc.Seed = cfg.Prediction.Seed
	}
	return prediction.NewEngine(pc, l)
}

// ProvideBacktestEngine creates the backtest engine.
func ProvideBacktestEngine(cfg *config.Config, l *applogger.Logger) *backtest.Engine {
	bc := backtest.DefaultConfig()
	if cfg.Backtest.Threshold > 0 {
		bc.Threshold = cfg.Backtest.Threshold
	}
	return backtest.NewEngine(bc, l)
}

// ProvideAnalyzer creates the flow analyzer.
func ProvideAnalyzer(cfg *config.Config, l *applogger.Logger) *analysis.Analyzer {
	ac := analysis.DefaultConfig()
	if cfg.Analysis.TGADrainPct != 0 {
		ac.TGADrainPct = cfg.Analysis.TGADrainPct
	}
	if cfg.Analysis.RRPOutflowPct != 0 {
		ac.RRPOutflowPct = cfg.Analysis.RRPOutflowPct
	}
	if cfg.Analysis.AuctionHeavyPct != 0 {
		ac.AuctionHeavyPct = cfg.Analysis.AuctionHeavyPct
	}
	if cfg.Analysis.AuctionLightPct != 0 {
		ac.AuctionLightPct = cfg.Analysis.AuctionLightPct
	}
	return analysis.NewAnalyzer(ac, l)
}

// ProvidePipeline creates the analysis pipeline.
func ProvidePipeline(
	cfg *config.Config,
	source repository.PanelSource,
	store repository.ResultStore,
	publisher repository.SignalPublisher,
	m repository.Metrics,
	engineer *features.Engineer,
	corr *correlation.Engine,
	pred *prediction.Engine,
	backtester *backtest.Engine,
	analyzer *analysis.Analyzer,
	l *applogger.Logger,
) *usecase.Pipeline {
	pc := usecase.PipelineConfig{
		Symbols: cfg.Source.Symbols,
		Model:   models.ModelKind(cfg.Prediction.Model),
		Compare: cfg.Prediction.Compare,
	}
	return usecase.NewPipeline(pc, source, store, publisher, m, engineer, corr, pred, backtester, analyzer, l)
}

// ProvideResultsView creates the cached results view.
func ProvideResultsView(store repository.ResultStore, c pkgcache.Service, cfg *config.Config, l *applogger.Logger) *usecase.ResultsView {
	return usecase.NewResultsView(store, c, cfg.Redis.CacheTTL, l)
}

// ProvideHTTPHandler creates the results API handler.
func ProvideHTTPHandler(l *applogger.Logger, view *usecase.ResultsView) xhttp.Handler {
	return api.NewAnalysisEchoHandler(l, view)
}

// logPublisher adapts the Kafka producer to the logger's collector sink.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (p logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server. When a log topic is configured
// the logger's error collector ships aggregated errors through Kafka.
func ProvideApp(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	view *usecase.ResultsView,
	source repository.PanelSource,
	publisher repository.SignalPublisher,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	l *applogger.Logger,
) *server.App {
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      logPublisher{producer: producer},
		})
	}
	return server.New(cfg, pipeline, view, source, publisher, chClient, handler, l)
}
