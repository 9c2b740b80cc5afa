package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "tailor-backend/internal/auth"
	"tailor-backend/internal/billing"
	"tailor-backend/internal/credits"
	"tailor-backend/internal/jobs"
	"tailor-backend/internal/onboarding"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/users"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config            config.Config
	OnboardingHandler *onboarding.Handler
	CreditsHandler    *credits.Handler
	JobsHandler       *jobs.Handler
	BillingHandler    *billing.Handler
	UsersHandler      *users.Handler
	GoogleAuth        *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Onboarding sessions, auth, and the billing webhook serve anonymous or
// provider traffic and stay outside the auth middleware; everything else
// requires a bearer token.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.OnboardingHandler != nil {
		// Session routes are anonymous, so throttle them per client IP.
		sessions := api.Group("")
		sessions.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"SESSION": {Rate: 2, Burst: 20},
			},
			DefaultGroup: "SESSION",
		}))
		deps.OnboardingHandler.RegisterRoutes(sessions)
	}
	if deps.BillingHandler != nil {
		deps.BillingHandler.RegisterRoutes(api)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth())
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(authed)
	}
	if deps.CreditsHandler != nil {
		deps.CreditsHandler.RegisterRoutes(authed)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(authed)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
