// Command guardd runs the tenant isolation guard service: a forward-auth
// authorization endpoint, tenant-scoped envelope encryption, and the
// cross-tenant audit trail with a live WebSocket feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/api"
	"github.com/relaydesk/tenantguard/internal/audit"
	"github.com/relaydesk/tenantguard/internal/cache"
	"github.com/relaydesk/tenantguard/internal/config"
	"github.com/relaydesk/tenantguard/internal/crypto"
	"github.com/relaydesk/tenantguard/internal/db"
	"github.com/relaydesk/tenantguard/internal/db/migrations"
	"github.com/relaydesk/tenantguard/internal/dbpool"
	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/quota"
	"github.com/relaydesk/tenantguard/internal/sanitize"
	"github.com/relaydesk/tenantguard/internal/store"
	"github.com/relaydesk/tenantguard/internal/tenant"
	"github.com/relaydesk/tenantguard/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("guardd exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	validationCache := newCache(ctx, cfg, log)
	defer validationCache.Close()

	base := store.Base{Pool: pool, Log: log}
	tenants := store.NewTenantStore(base)
	quotas := store.NewQuotaStore(base)
	auditStore := store.NewAuditStore(base)

	feed := ws.NewFeed(log)

	var notifier audit.Notifier
	if cfg.AuditStreamEnabled {
		notifier = feed
	}
	recorder := audit.NewRecorder(ctx, auditStore, notifier, log)

	validator := tenant.NewValidator(tenants, validationCache, cfg.CacheTTL, log)

	guardCfg := tenant.Config{
		TenantIDParam:        cfg.TenantIDParam,
		AllowSuperAdmin:      cfg.AllowSuperAdmin,
		ExcludePaths:         cfg.ExcludePaths,
		StrictMode:           cfg.StrictMode,
		AuditTrail:           cfg.AuditTrail,
		MaxDepth:             cfg.MaxDepth,
		ValidateTenantExists: cfg.ValidateTenantExists,
		ValidateTenantStatus: cfg.ValidateTenantStatus,
		AllowedStatuses:      toStatuses(cfg.AllowedStatuses),
		AllowCacheBypass:     cfg.AllowCacheBypass,
	}
	enforcer, err := tenant.NewEnforcer(guardCfg, validator, recorder, log)
	if err != nil {
		return err
	}

	guard, err := quota.NewGuard(quotas.GetLimits, quotas.GetUsage)
	if err != nil {
		return err
	}

	keys, err := newKeyProvider(cfg)
	if err != nil {
		return err
	}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:      log,
		Pool:     pool,
		Cache:    validationCache,
		Enforcer: enforcer,
		IsolationCfg: middleware.IsolationConfig{
			Config:                guardCfg,
			PerformanceMonitoring: cfg.PerformanceMonitoring,
		},
		Quota:         guard,
		Audit:         auditStore,
		Feed:          feed,
		Crypto:        crypto.NewService(keys),
		Keys:          keys,
		EncryptionCfg: middleware.EncryptionConfig{ValidateTenantID: true},
		Sanitizer: sanitize.New(sanitize.Config{
			Field:          cfg.TenantIDParam,
			MaxDepth:       cfg.MaxDepth,
			DeepInspection: true,
		}),
		CORSOrigins:    cfg.CORSOrigins,
		QuotaResources: cfg.QuotaResources,
		Version:        config.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"version": config.Version,
		}).Info("guardd listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Warn("server shutdown was not clean")
	}

	feed.Drain(shutdownCtx)
	recorder.Close()

	log.Info("guardd stopped")

	return nil
}

// newCache picks the validation cache backend: Redis when configured,
// otherwise a process-local in-memory cache.
func newCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		log.Debug("using in-memory validation cache")

		return cache.NewInMemory(ctx)
	}

	log.WithField("addr", cfg.RedisAddr).Info("using redis validation cache")

	return cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword.Value(),
		DB:       cfg.RedisDB,
	})
}

// newKeyProvider builds the tenant key provider from configuration. The
// config validator has already checked the provider-specific settings.
func newKeyProvider(cfg *config.Config) (crypto.KeyProvider, error) {
	if cfg.EncryptionProvider == "vault" {
		return crypto.NewVaultProvider(cfg.VaultAddr, cfg.VaultToken.Value()), nil
	}

	return crypto.NewStaticProvider(cfg.EncryptionKey.Value())
}

func toStatuses(in []string) []tenant.Status {
	out := make([]tenant.Status, 0, len(in))
	for _, s := range in {
		out = append(out, tenant.Status(s))
	}

	return out
}
