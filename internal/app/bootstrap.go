package app

import (
	"context"
	"fmt"

	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/internal/infrastructure/config"
	"flight-alert-service/internal/infrastructure/credentials"
	"flight-alert-service/internal/infrastructure/persistence"
	repo "flight-alert-service/internal/interface/repository"
	"flight-alert-service/internal/usecase"
	"flight-alert-service/pkg/logger"
	"flight-alert-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const metricsNamespace = "flight_alert"

// AppContext holds all app dependencies
type AppContext struct {
	Config    *config.Config
	AppConfig *config.AppConfig
	Logger    logger.Logger

	DB          *gorm.DB
	MongoClient *mongo.Client

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Prices    repository.PriceRepository
	Locations repository.LocationRepository
	AlertLog  repository.AlertLogRepository

	Orchestrator *usecase.AlertOrchestrator
}

// OpenDatabase resolves credentials and connects to PostgreSQL. It does not
// migrate the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*gorm.DB, error) {
	chain := credentials.NewDefaultChain(log, cfg.CredentialsFile, cfg.AllowDefaultCredentials)
	creds, err := chain.Resolve()
	if err != nil {
		return nil, err
	}
	log.Info("Database credentials resolved", "source", creds.Source, "host", creds.Host, "database", creds.Database)

	policy := persistence.RetryPolicy{Attempts: cfg.DBRetryAttempts, Delay: cfg.DBRetryDelay}
	db, err := persistence.OpenPostgres(ctx, creds.PostgresDSN(), policy, log)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewApp initializes the app context with all dependencies
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*AppContext, error) {
	app := &AppContext{Config: cfg, Logger: log}

	appCfg, err := config.LoadAppConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	app.AppConfig = appCfg
	log.Info("Tracking configuration loaded",
		"path", cfg.ConfigPath,
		"origins", appCfg.PlaceFrom,
		"targetPrice", appCfg.TargetPrice.String())

	db, err := OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.DB = db

	if err := repo.AutoMigrate(db); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	log.Info("PostgreSQL connected and schema migrated")

	policy := persistence.RetryPolicy{Attempts: cfg.DBRetryAttempts, Delay: cfg.DBRetryDelay}
	app.Prices = repo.NewGormPriceRepository(db, policy, log)
	app.Locations = repo.NewGormLocationRepository(db)

	if cfg.MongoURI != "" {
		client, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			log.Warn("Failed to connect to MongoDB, continuing without alert log", "error", err)
		} else {
			app.MongoClient = client
			app.AlertLog = repo.NewMongoAlertLogRepository(persistence.GetDatabase(client, cfg.MongoDB), log)
			log.Info("MongoDB alert log initialized", "database", cfg.MongoDB)
		}
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewMetrics(metricsNamespace, app.Registry)

	fares := repo.NewHTTPFareRepository(repo.FareOptions{
		DomesticURL:      appCfg.BaseURL,
		InternationalURL: appCfg.InternationalBaseURL,
		UserAgent:        cfg.UserAgent,
		Direct:           appCfg.Direct,
	}, log)
	notifier := repo.NewPushPlusRepository(cfg.PushEndpoint, cfg.PushToken, cfg.UserAgent, log)

	app.Orchestrator = usecase.NewAlertOrchestrator(
		app.Prices,
		app.Locations,
		fares,
		notifier,
		app.AlertLog,
		app.Metrics,
		log,
		SettingsFromAppConfig(appCfg),
	)
	log.Info("Alert orchestrator initialized")

	return app, nil
}

// SettingsFromAppConfig maps the tracking file onto orchestrator settings
func SettingsFromAppConfig(c *config.AppConfig) usecase.AlertSettings {
	return usecase.AlertSettings{
		Origins:                   c.PlaceFrom,
		Destinations:              c.PlaceTo,
		InternationalDestinations: c.InternationalPlaceTo,
		TargetPrice:               c.TargetPrice,
		InternationalTargetPrice:  c.InternationalTargetPrice,
		UseEligibleDestinations:   c.UseEligibleDestinations,
		TrackOneWay:               c.TrackOneWay,
	}
}

// Ping checks the PostgreSQL connection
func (a *AppContext) Ping(ctx context.Context) error {
	return persistence.Ping(ctx, a.DB)
}

// Close releases database connections
func (a *AppContext) Close(ctx context.Context) {
	if a.MongoClient != nil {
		if err := a.MongoClient.Disconnect(ctx); err != nil {
			a.Logger.Error("MongoDB disconnect error", "error", err)
		}
	}
	if a.DB != nil {
		if err := persistence.Close(a.DB); err != nil {
			a.Logger.Error("PostgreSQL close error", "error", err)
		}
	}
}
