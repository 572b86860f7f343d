package providers

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leaflog/leaflog/client"
	"github.com/leaflog/leaflog/internal/config"
	"github.com/leaflog/leaflog/internal/infrastructure/backend"
	"github.com/leaflog/leaflog/internal/infrastructure/database"
	"github.com/leaflog/leaflog/internal/infrastructure/gateway"
	"github.com/leaflog/leaflog/internal/infrastructure/localstore"
	"github.com/leaflog/leaflog/internal/usecase"
)

// NewLogger builds the process logger by mode.
func NewLogger(mode string) (*zap.Logger, error) {
	if mode == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewLocalStore opens the on-device sqlite store at the configured path.
func NewLocalStore(path string) (*localstore.Store, error) {
	db, err := database.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateSQLite(db); err != nil {
		return nil, err
	}
	return localstore.New(db), nil
}

// NewRedis creates a redis client.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
}

// NewMemcache creates a memcache client.
func NewMemcache(addr string) *memcache.Client {
	return memcache.New(addr)
}

// NewClient constructs the HTTP client used to talk to a remote backend.
func NewClient(baseURL string) *client.Client {
	return client.New(baseURL)
}

// NewBackendSelector registers every adapter the configuration can
// serve. Which one is active is decided by settings, not here.
func NewBackendSelector(conf config.Server, cloud usecase.Backend, store usecase.LocalStore, log *zap.Logger) *backend.Selector {
	selector := backend.NewSelector(log)
	if cloud != nil {
		selector.Register(cloud)
	}
	selector.Register(backend.NewLocal(store, conf.MediaDir))
	if conf.RemoteAPI != "" {
		selector.Register(backend.NewHTTP(NewClient(conf.RemoteAPI), log))
	}
	return selector
}

// NewRecognitionGateway constructs the species recognition gateway.
func NewRecognitionGateway(conf config.Recognition, log *zap.SugaredLogger) *gateway.RecognitionGateway {
	return gateway.NewRecognitionGateway(conf, log)
}

// SetupTraceProvider installs the OTLP trace pipeline and returns its
// shutdown func. Tracing off means a no-op provider and a no-op
// shutdown.
func SetupTraceProvider(ctx context.Context, conf config.Server) (func(context.Context) error, error) {
	if !conf.EnableTrace {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(conf.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("leaflog"),
			attribute.String("service.fqdn", conf.FQDN),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
