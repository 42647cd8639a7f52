// serve.go — сборка зависимостей и запуск HTTP-сервиса.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/resolver-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/resolver-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/resolver-module/internal/config"
	"github.com/bigkaa/goartstore/resolver-module/internal/repository"
	"github.com/bigkaa/goartstore/resolver-module/internal/server"
	"github.com/bigkaa/goartstore/resolver-module/internal/service"
)

// serviceID — идентификатор сервиса в метриках topologymetrics.
const serviceID = "resolver-module"

// runServe загружает конфигурацию, собирает сервисы и блокируется до завершения.
func runServe(ctx context.Context, cfgFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Конфигурация
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	// 2. Логгер
	logger := config.SetupLogger(cfg)
	logger.Info("Resolver Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("owner", cfg.OwnerAddress.Hex()),
	)

	// 3. Состояние резолвера
	repo := repository.NewRecordRepository()
	cache, err := service.NewCacheService(cfg.CacheMaxEntries, cfg.CacheDefaultTTL, cfg.CacheMaxTTL, nil)
	if err != nil {
		return fmt.Errorf("инициализация кэша: %w", err)
	}
	authz, err := service.NewAuthorizationManager(cfg.OwnerAddress, cfg.AuthorizedCallers)
	if err != nil {
		return fmt.Errorf("инициализация авторизации: %w", err)
	}
	resolver, err := service.NewResolverService(repo, cache, authz, service.ResolverConfig{
		Collaborators: service.Collaborators{
			Registry:        cfg.RegistryAddress,
			MetadataService: cfg.MetadataServiceAddress,
		},
		MaxMulticallOperations: cfg.MulticallMaxOperations,
	}, logger)
	if err != nil {
		return fmt.Errorf("инициализация резолвера: %w", err)
	}

	// 4. topologymetrics — мониторинг JWKS provider
	var depsChecker handlers.ReadinessChecker
	if cfg.DephealthEnabled {
		dephealthSvc, dhErr := service.NewDephealthService(
			serviceID,
			cfg.DephealthGroup,
			cfg.JWKSURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			depsChecker = dephealthSvc
			logger.Info("topologymetrics запущен",
				slog.String("jwks_url", cfg.JWKSURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 5. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSURL,
		CACertPath:      cfg.JWKSCACert,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
		Issuer:          cfg.JWTIssuer,
	}, logger)
	if err != nil {
		return fmt.Errorf("инициализация JWT: %w", err)
	}
	logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSURL))

	// 6. Handlers
	healthHandler := handlers.NewHealthHandler(resolver, depsChecker)
	apiHandler := handlers.NewAPIHandler(resolver, healthHandler, logger)

	// 7. HTTP-сервер
	srv := server.New(cfg, logger,
		func(r chi.Router) { apiHandler.Register(r, jwtAuth.Middleware()) },
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Resolver Module остановлен")
	return nil
}
