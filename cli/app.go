package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"rental-digest/config"
	"rental-digest/metrics"
	"rental-digest/models"
	"rental-digest/notify"
	"rental-digest/scraper"
	"rental-digest/services"
	"rental-digest/storage"
	"rental-digest/utils"
)

const pingTimeout = 30 * time.Second

// app is everything a run needs, built once from configuration.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	store   storage.Store
	gateway *storage.Gateway
	metrics *metrics.Recorder

	awsCfg *aws.Config
}

// newApp loads and validates configuration, opens the store and checks it
// is reachable. Every failure here is a fatal configuration error: nothing
// has run yet.
func newApp(ctx context.Context) (*app, error) {
	if criteriaFile != "" {
		os.Setenv("CRITERIA_FILE", criteriaFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFatalConfiguration, err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %v", models.ErrFatalConfiguration, cfg.StoreBackend, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %s store unreachable: %v", models.ErrFatalConfiguration, cfg.StoreBackend, err)
	}
	logger.Info("[app] Connected to %s store", cfg.StoreBackend)

	a.store = store
	a.gateway = storage.NewGateway(store, cfg.IngestConcurrency, logger)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("[app] Closing store: %v", err)
		}
	}
	a.logger.Sync()
}

func (a *app) loadAWS(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.StoreBackend {
	case config.BackendPostgres:
		return storage.NewPostgresStore(ctx, a.cfg.DSN(), a.logger)
	case config.BackendDynamoDB:
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), a.cfg.DynamoDBTable), nil
	case config.BackendRedis:
		return storage.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})), nil
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

func (a *app) openSink(ctx context.Context) (notify.Sink, error) {
	switch a.cfg.NotifySink {
	case config.SinkSES:
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSESSink(sesv2.NewFromConfig(awsCfg), a.cfg.EmailSender, a.cfg.EmailRecipients, a.logger)
	case config.SinkLog:
		return notify.NewLogSink(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", a.cfg.NotifySink)
	}
}

// newPipeline wires providers for one ingest run. The returned cleanup
// shuts down the browser and the raw snapshot file.
func (a *app) newPipeline() (*services.Pipeline, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := scraper.Deps{
		Logger:         a.logger,
		Delay:          a.cfg.ProviderDelay,
		RequestTimeout: a.cfg.RequestTimeout,
		UserAgent:      a.cfg.UserAgent,
		StateCode:      a.cfg.StateCode,
		StateName:      a.cfg.StateName,
	}
	if scraper.NeedsBrowser(a.cfg.Providers) {
		renderer := scraper.NewChromeRenderer(scraper.RendererOptions{
			ChromeBin:  a.cfg.ChromeBin,
			UserAgent:  a.cfg.UserAgent,
			Timeout:    a.cfg.RequestTimeout,
			MaxRetries: a.cfg.MaxRetries,
		}, a.logger)
		cleanups = append(cleanups, renderer.Close)
		deps.Renderer = renderer
	}

	providers, err := scraper.NewAll(a.cfg.Providers, deps)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: %v", models.ErrFatalConfiguration, err)
	}

	opts := []services.PipelineOption{services.WithPipelineMetrics(a.metrics)}
	if a.cfg.RawCSVPath != "" {
		w, err := storage.NewCSVWriter(a.cfg.RawCSVPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() {
			if err := w.Close(); err != nil {
				a.logger.Warn("[app] Closing raw snapshot: %v", err)
			}
		})
		opts = append(opts, services.WithRawWriter(w))
	}

	return services.NewPipeline(providers, a.cfg.Criteria, a.gateway, a.logger, opts...), cleanup, nil
}

func (a *app) newReporter(ctx context.Context, window time.Duration) (*services.Reporter, error) {
	money, err := utils.NewMoneyFormatter(a.cfg.ReportLocale, a.cfg.CurrencySymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFatalConfiguration, err)
	}

	loc, err := time.LoadLocation(a.cfg.ReportTimezone)
	if err != nil {
		a.logger.Warn("[app] Unknown timezone %q, reporting in UTC", a.cfg.ReportTimezone)
		loc = time.UTC
	}

	sink, err := a.openSink(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFatalConfiguration, err)
	}

	composer := services.NewDigestComposer(a.cfg.ReportTitle, money, loc)
	return services.NewReporter(a.gateway, composer, sink, window, a.logger,
		services.WithReporterMetrics(a.metrics)), nil
}
