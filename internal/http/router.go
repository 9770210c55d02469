package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/raksha/internal/cache"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/http/handlers"
	"github.com/geocoder89/raksha/internal/http/middlewares"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// UserRepository is everything the HTTP layer needs from the user store.
type UserRepository interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Mutate(ctx context.Context, id string, fn func(*user.User) error) (user.User, error)
	SetPushToken(ctx context.Context, id, token string) error
}

type Deps struct {
	Env         string
	ServiceName string

	Users     UserRepository
	Zones     handlers.ZoneStore
	ZoneCache cache.Store
	Tokens    TokenService
	SOS       handlers.SOSTrigger

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.PingFunc

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
}

// TokenService both issues tokens for the user handlers and verifies them for the auth gate.
type TokenService interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

func NewRouter(log *slog.Logger, d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.ServiceName == "" {
		d.ServiceName = "raksha-api"
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMw := middlewares.NewAuthMiddleware(d.Tokens)
	requireAuth := authMw.RequireAuth()

	usersHandler := handlers.NewUsersHandler(d.Users, d.Tokens)
	safetyHandler := handlers.NewSafetyHandler(d.Users, d.SOS)
	contactsHandler := handlers.NewContactsHandler(d.Users)
	zonesHandler := handlers.NewDangerZonesHandler(d.Zones, d.ZoneCache)
	notificationsHandler := handlers.NewNotificationsHandler(d.Users)

	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("/register", usersHandler.Register)
	users.POST("/login", usersHandler.Login)
	users.GET("/me", requireAuth, usersHandler.Me)

	safety := api.Group("/safety", requireAuth)
	safety.PUT("/location", safetyHandler.UpdateLocation)
	safety.POST("/sos", safetyHandler.SOS)
	safety.GET("/trusted-contacts", contactsHandler.List)
	safety.POST("/trusted-contacts", contactsHandler.Add)
	safety.PUT("/trusted-contacts/:id", contactsHandler.Update)
	safety.DELETE("/trusted-contacts/:id", contactsHandler.Delete)

	zones := api.Group("/dangerzones", requireAuth)
	zones.GET("", zonesHandler.List)
	zones.POST("/add-test-zone", zonesHandler.SeedTestZone)

	notifications := api.Group("/notifications", requireAuth)
	notifications.POST("/token", notificationsHandler.RegisterToken)

	return r
}
