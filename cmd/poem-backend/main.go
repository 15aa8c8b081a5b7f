package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"poem-backend/internal/config"
	"poem-backend/internal/database"
	httpapi "poem-backend/internal/http"
	"poem-backend/internal/logger"
	"poem-backend/internal/repository"
	"poem-backend/internal/service"
	"poem-backend/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "poem-backend")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var kv store.KV = store.NewRedisKV(redisClient)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		kv = store.NewMemoryKV()
	}
	reports := store.NewSyncReports(kv)

	var (
		db            *sql.DB
		tenantsRepo   repository.TenantsRepository
		probesRepo    repository.ProbesRepository
		packagesRepo  repository.PackagesRepository
		templatesRepo repository.MetricTemplatesRepository
		metricsRepo   repository.MetricsRepository
		historyRepo   repository.HistoryRepository
		profilesRepo  repository.ProfilesRepository
	)

	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for poem-backend")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(err))
		}
	}
	if db != nil {
		tenantsRepo = repository.NewPostgresTenantsRepository(db)
		probesRepo = repository.NewPostgresProbesRepository(db)
		packagesRepo = repository.NewPostgresPackagesRepository(db)
		templatesRepo = repository.NewPostgresMetricTemplatesRepository(db)
		metricsRepo = repository.NewPostgresMetricsRepository(db)
		historyRepo = repository.NewPostgresHistoryRepository(db)
		profilesRepo = repository.NewPostgresProfilesRepository(db)
	} else {
		tenantsRepo = repository.NewMemoryTenantsRepository()
		probesRepo = repository.NewMemoryProbesRepository()
		packagesRepo = repository.NewMemoryPackagesRepository()
		templatesRepo = repository.NewMemoryMetricTemplatesRepository()
		metricsRepo = repository.NewMemoryMetricsRepository()
		historyRepo = repository.NewMemoryHistoryRepository()
		profilesRepo = repository.NewMemoryProfilesRepository()
	}

	webapi := service.NewWebAPIClient(cfg.WebAPI.BaseURL,
		time.Duration(cfg.WebAPI.TimeoutSeconds)*time.Second, log)

	propagation := service.NewPropagationService(tenantsRepo, metricsRepo, historyRepo, webapi, log)
	templateSvc := service.NewMetricTemplateService(templatesRepo, probesRepo, propagation, log)
	probeSvc := service.NewProbeService(probesRepo, packagesRepo, templateSvc, log)
	metricSvc := service.NewMetricService(metricsRepo, historyRepo, log)
	importSvc := service.NewImportService(templatesRepo, probesRepo, metricsRepo, historyRepo,
		tenantsRepo, webapi, reports, log)
	profileSvc := service.NewProfileService(profilesRepo, historyRepo, log)

	resolver := httpapi.NewTenantResolver(tenantsRepo)
	router := httpapi.NewRouter(log)
	router.RegisterProbeRoutes(httpapi.NewProbeHandler(probeSvc, log))
	router.RegisterTemplateRoutes(httpapi.NewMetricTemplateHandler(templateSvc, log))
	router.RegisterMetricRoutes(httpapi.NewMetricHandler(metricSvc, importSvc, reports, resolver, log))
	router.RegisterProfileRoutes(httpapi.NewProfileHandler(profileSvc, resolver, log))
	router.RegisterAPIKeyRoutes(httpapi.NewAPIKeyHandler(tenantsRepo, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
