package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/api"
	"github.com/charlesng35/rsvp/internal/app"
	"github.com/charlesng35/rsvp/internal/app/maintenance"
	iauth "github.com/charlesng35/rsvp/internal/auth"
	"github.com/charlesng35/rsvp/internal/cache"
	"github.com/charlesng35/rsvp/internal/database"
	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/monitoring"
	"github.com/charlesng35/rsvp/internal/monitoring/checks"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/security"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/logger"
)

const healthCheckTimeout = 3 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Hub       *realtime.Hub
	Services  *services.Container
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, stack.DB); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		redisCfg, err := cfg.Cache.RedisClientConfig()
		if err != nil {
			return nil, err
		}
		if stack.Redis, err = cache.NewRedisStore(redisCfg); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", redisCfg.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := cfg.Email.NewMailer()
	if err != nil {
		return nil, err
	}
	if mailer == nil {
		log.Info("smtp disabled; email notifications are skipped")
	}

	loc, err := cfg.Events.Location()
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub()

	stack.Services, err = services.NewContainer(stack.DB, services.ContainerConfig{
		Hub:             stack.Hub,
		Mailer:          mailer,
		BaseURL:         cfg.Server.BaseURL,
		Location:        loc,
		DefaultDuration: cfg.Events.DefaultDuration,
		SocialPlatforms: cfg.Social.ServicePlatforms(),
		SocialSecret:    cfg.Social.Secret,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	var oidcLogin *iauth.OIDCLogin
	if cfg.Auth.OIDC.Enabled {
		codec, err := cfg.Auth.StateCodec()
		if err != nil {
			return nil, err
		}
		oidcLogin, err = iauth.NewOIDCLogin(cfg.Auth.OIDCConfig(), codec, iauth.OIDCOptions{})
		if err != nil {
			return nil, fmt.Errorf("initialise oidc login: %w", err)
		}
	}

	tracker := monitoring.NewJobTracker()
	stack.Cleaner = maintenance.NewCleaner(
		stack.Services.Events,
		stack.Services.Notifications,
		stack.Services.Audit,
		maintenance.WithJobTracker(tracker),
		maintenance.WithCachePurger(dbStore),
		maintenance.WithArchiveSchedule(cfg.Maintenance.ArchiveSchedule),
		maintenance.WithNotificationRetentionDays(cfg.Maintenance.NotificationRetentionDays),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	health := monitoring.NewHealthManager(healthCheckTimeout)
	health.RegisterLiveness(checks.Realtime(stack.Hub))
	health.RegisterReadiness(checks.Database(stack.DB))
	health.RegisterReadiness(checks.Maintenance(tracker, 0))

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
		health.RegisterReadiness(checks.Cache("redis", stack.Redis))
	default:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
		health.RegisterReadiness(checks.Cache("cache", dbStore))
	}

	securityAudit := security.NewAuditService(stack.DB, cfg)
	logSecurityAudit(securityAudit.Run(ctx), log)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		Services:  stack.Services,
		Hub:       stack.Hub,
		OIDC:      oidcLogin,
		Health:    health,
		Security:  securityAudit,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// logSecurityAudit surfaces failed and warning checks at startup.
func logSecurityAudit(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
