package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/rsvp/internal/app"
	iauth "github.com/charlesng35/rsvp/internal/auth"
	"github.com/charlesng35/rsvp/internal/handlers"
	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/monitoring"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/security"
	"github.com/charlesng35/rsvp/internal/services"
)

// Dependencies bundles everything the HTTP layer is built from.
type Dependencies struct {
	Config    *app.Config
	JWT       *iauth.JWTService
	Services  *services.Container
	Hub       *realtime.Hub
	OIDC      *iauth.OIDCLogin
	Health    *monitoring.HealthManager
	Security  *security.AuditService
	RateStore middleware.RateStore
}

// routeGroups are the access tiers every route module mounts under.
type routeGroups struct {
	public   *gin.RouterGroup
	signedIn *gin.RouterGroup
	member   *gin.RouterGroup
	admin    *gin.RouterGroup
	auth     *middleware.Authenticator
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services must be provided")
	}
	cfg := deps.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.BaseURL))
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF(middleware.CSRFConfig{SessionCookie: middleware.TokenCookieName}))
	}
	if limit := cfg.Server.RateLimit; limit.Requests > 0 && limit.Window > 0 {
		store := deps.RateStore
		if store == nil {
			store = middleware.NewMemoryRateStore()
		}
		r.Use(middleware.RateLimit(store, limit.Requests, limit.Window))
	}

	registerHealthRoutes(r, cfg, deps.Health)

	authn := middleware.NewAuthenticator(deps.JWT, deps.Services.Users, cfg.Auth.BotToken)
	groups := routeGroups{
		public:   r.Group("/api"),
		signedIn: r.Group("/api", authn.Required()),
		auth:     authn,
	}
	groups.member = groups.signedIn.Group("", middleware.RequireApproved(cfg.Auth.PrivateApp))
	groups.admin = groups.member.Group("", middleware.RequireRole(models.RoleAdmin))

	registerAuthRoutes(groups, handlers.NewAuthHandler(deps.Services.Users, deps.JWT, deps.OIDC, handlers.AuthConfig{
		PrivateApp:   cfg.Auth.PrivateApp,
		DevLogin:     cfg.Auth.DevLogin,
		SecureCookie: strings.HasPrefix(strings.ToLower(cfg.Server.BaseURL), "https://"),
	}))
	registerEventRoutes(groups,
		handlers.NewEventHandler(deps.Services.Events, deps.Services.Users),
		handlers.NewRSVPHandler(deps.Services.RSVPs),
	)
	registerPostRoutes(groups, handlers.NewPostHandler(deps.Services.Posts, cfg.Auth.PrivateApp))
	registerUserRoutes(groups,
		handlers.NewUserHandler(deps.Services.Users),
		handlers.NewEventHandler(deps.Services.Events, deps.Services.Users),
	)
	registerNotificationRoutes(groups, handlers.NewNotificationHandler(deps.Services.Notifications))
	registerSocialRoutes(groups, handlers.NewSocialHandler(deps.Services.Social))
	registerAuditRoutes(groups, handlers.NewAuditHandler(deps.Services.Audit))
	if deps.Security != nil {
		registerSecurityRoutes(groups, handlers.NewSecurityHandler(deps.Security))
	}
	registerRealtimeRoutes(r, authn, handlers.NewRealtimeHandler(deps.Hub, cfg.Auth.PrivateApp))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
