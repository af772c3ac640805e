package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/authz"
	"github.com/pavitra93/go-multi-tenant-admin/shared/config"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/seeding"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	config.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// Resolve the signing secret from Secrets Manager if configured
	if cfg.JWT.SecretID != "" {
		loader, err := config.NewSecretLoader(cfg.AWSRegion)
		if err != nil {
			log.Fatal("Failed to initialize secret loader:", err)
		}
		if err := config.ResolveJWTSecret(ctx, cfg, loader); err != nil {
			log.Fatal("Failed to load JWT secret:", err)
		}
	}

	// Initialize database
	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&models.Tenant{}); err != nil {
		log.Fatal("Failed to migrate tenants table:", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize Redis for tenant caching
	var cache *tenancy.Cache
	redisClient, err := utils.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logrus.Warnf("Failed to connect to Redis, tenant caching disabled: %v", err)
	} else {
		defer redisClient.Close()
		cache = tenancy.NewCache(redisClient, cfg.Redis.CacheTTL, m)
	}

	// Initialize Kafka publisher
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka, m)
		defer kp.Close()
		publisher = kp
	} else {
		logrus.Warn("KAFKA_BROKERS not set, domain events disabled")
	}

	conns, err := tenancy.NewConnections(db, cfg.Tenancy.ConnectionCacheSize, config.OpenPostgres)
	if err != nil {
		log.Fatal("Failed to initialize tenant connections:", err)
	}
	defer conns.Close()

	hasher := identity.NewPasswordHasher()
	seeder := seeding.NewSeeder(conns, hasher, seeding.Options{
		DefaultPassword: cfg.Tenancy.DefaultPassword,
		AdminFirstName:  cfg.Tenancy.AdminFirstName,
		AdminLastName:   cfg.Tenancy.AdminLastName,
	})
	directory := tenancy.NewDirectory(db, cache, seeder, publisher, tenancy.RootSettings{
		Name:      cfg.Tenancy.RootName,
		Email:     cfg.Tenancy.RootAdminEmail,
		FirstName: cfg.Tenancy.AdminFirstName,
		LastName:  cfg.Tenancy.AdminLastName,
	})

	if err := seeder.SeedAll(ctx, directory); err != nil {
		log.Fatal("Failed to seed tenants:", err)
	}

	watcher := tenancy.NewExpiryWatcher(directory, cfg.Tenancy.ExpiryCheckSchedule, publisher, m)
	if err := watcher.Start(); err != nil {
		log.Fatal("Failed to start expiry watcher:", err)
	}

	store := identity.NewStore(conns)
	tokens := identity.NewTokenService(store, hasher, identity.TokenOptions{
		Secret:          []byte(cfg.JWT.Secret),
		TokenTTL:        cfg.JWT.TokenTTL(),
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL(),
	}, m)

	app := &App{
		DB:      db,
		Tenants: directory,
		Roles:   identity.NewRoleService(store, publisher),
		Users:   identity.NewUserService(store, hasher, publisher, cfg.Tenancy.RootAdminEmail),
		Tokens:  tokens,
		Auth:    middleware.NewAuthMiddleware(tokens, directory, authz.NewPolicyProvider(m), cfg.Tenancy.HeaderName),
		Metrics: m,
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewRouter(app, cfg.Tenancy.HeaderName),
	}

	go func() {
		logrus.Infof("Admin service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start admin service:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down admin service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	<-watcher.Stop().Done()
}
