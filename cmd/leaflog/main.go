package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog/internal/config"
	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/i18n"
	"github.com/leaflog/leaflog/internal/infrastructure/backend"
	"github.com/leaflog/leaflog/internal/infrastructure/gateway"
	"github.com/leaflog/leaflog/internal/infrastructure/providers"
	"github.com/leaflog/leaflog/internal/infrastructure/repository"
	"github.com/leaflog/leaflog/internal/present/rest"
	"github.com/leaflog/leaflog/internal/present/rest/middleware"
	"github.com/leaflog/leaflog/internal/service"
	"github.com/leaflog/leaflog/internal/usecase"
)

func main() {
	configPath := flag.String("c", "/etc/leaflog/config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := providers.NewLogger(conf.Server.LogMode)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer log.Sync()

	ctx := context.Background()

	shutdownTrace, err := providers.SetupTraceProvider(ctx, conf.Server)
	if err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTrace(shutdownCtx); err != nil {
			log.Warn("trace shutdown failed", zap.Error(err))
		}
	}()

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	if err := providers.MigrateDatabase(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	rdb := providers.NewRedis(conf.Server)

	var urlCache gateway.URLCache
	switch {
	case conf.Server.MemcachedAddr != "":
		urlCache = gateway.NewMemcachedURLCache(providers.NewMemcache(conf.Server.MemcachedAddr))
	case conf.Server.RedisAddr != "":
		urlCache = gateway.NewRedisURLCache(rdb)
	default:
		urlCache = gateway.NewMemoryURLCache()
	}

	assets, err := gateway.NewAssetGateway(ctx, conf.Storage, urlCache, log.Sugar())
	if err != nil {
		log.Fatal("failed to init asset gateway", zap.Error(err))
	}

	local, err := providers.NewLocalStore(conf.Server.LocalStore)
	if err != nil {
		log.Fatal("failed to open local store", zap.Error(err))
	}

	plantDocs := repository.NewPlantDocumentRepository(db)
	shareRepo := repository.NewShareRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	cloud := backend.NewCloud(db, plantDocs, shareRepo, profileRepo, assets)
	selector := providers.NewBackendSelector(conf.Server, cloud, local, log)

	settings := usecase.NewSettingsUsecase(local, log.Sugar())
	if err := selector.Select(ctx, settings.Current(ctx).Backend); err != nil {
		log.Fatal("failed to activate backend", zap.Error(err))
	}

	domainConf := domain.Config{
		FQDN:      conf.Server.FQDN,
		JWTSecret: conf.Server.JWTSecret,
	}

	authService := service.NewAuthService(&domainConf)
	signalService := service.NewSignalService(rdb)

	notifications := usecase.NewNotificationUsecase(notificationRepo)
	profiles := usecase.NewProfileUsecase(selector)
	share := usecase.NewShareUsecase(selector, local, notifications, signalService, log.Sugar())
	recognition := providers.NewRecognitionGateway(conf.Recognition, log.Sugar())
	recognition.ApplySettings(settings.Current(ctx))
	settings.OnChange(func(s domain.Settings) {
		recognition.ApplySettings(s)
		if s.Backend != selector.Kind() {
			if err := selector.Select(context.Background(), s.Backend); err != nil {
				log.Warn("backend switch failed", zap.String("kind", s.Backend), zap.Error(err))
			}
		}
	})

	locales, err := i18n.Load()
	if err != nil {
		log.Fatal("failed to load locales", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(otelecho.Middleware("leaflog"))

	authMiddleware := middleware.NewAuthMiddleware(authService, domainConf)
	e.Use(authMiddleware.IdentifyRequester)

	handler := rest.NewHandler(
		domainConf,
		selector,
		assets,
		share,
		notifications,
		profiles,
		authService,
		signalService,
		recognition,
		locales,
		log,
	)
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.Listen); err != nil {
			log.Info("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown failed", zap.Error(err))
	}
}
