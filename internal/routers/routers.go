// Package routers wires the HTTP surface: middleware chain, route groups,
// and the WebSocket endpoint.
package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/internal/handlers"
	"github.com/dapoalex/AjoPool/internal/middlewares"
	"github.com/dapoalex/AjoPool/internal/store"
	"github.com/dapoalex/AjoPool/internal/ws"
	"github.com/dapoalex/AjoPool/pkg/jwt"
	"github.com/dapoalex/AjoPool/pkg/logger"
	"github.com/dapoalex/AjoPool/pkg/pool"
	"github.com/dapoalex/AjoPool/pkg/ratelimit"
)

type Deps struct {
	Config  *config.Config
	Log     *logger.Logger
	Tokens  *jwt.TokenManager
	Limiter ratelimit.Limiter
	Pool    *pool.WorkerPool
	Store   store.Store
	Hub     *ws.Hub

	Auth   *handlers.AuthHandler
	Groups *handlers.GroupHandler
	Cycles *handlers.CycleHandler
}

func SetupRoutes(r *gin.Engine, d Deps) {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Trace-ID"}
	r.Use(cors.New(corsCfg))
	r.Use(middlewares.Trace(d.Log))

	// WebSocket upgrade must stay off the worker pool; the connection is
	// long-lived and would occupy a worker for its whole lifetime.
	r.GET("/ws", middlewares.Auth(d.Tokens), func(c *gin.Context) {
		ws.ServeWs(d.Hub, d.Store, c)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.Use(middlewares.Async(d.Pool))

	registerUserRoutes(r, d)
	registerGroupRoutes(r, d)
}

func registerUserRoutes(r *gin.Engine, d Deps) {
	users := r.Group("/api/v1/users")
	{
		users.POST("/register", middlewares.RateLimit(d.Limiter, d.Config.RateLimit, "login"), d.Auth.Register)
		users.POST("/login", middlewares.RateLimit(d.Limiter, d.Config.RateLimit, "login"), d.Auth.Login)
		users.POST("/refresh", d.Auth.RefreshToken)
	}
	users.Use(middlewares.Auth(d.Tokens))
	{
		users.GET("/me", d.Auth.Profile)
		users.PATCH("/me/password", d.Auth.ChangePassword)
	}
}

func registerGroupRoutes(r *gin.Engine, d Deps) {
	groups := r.Group("/api/v1/groups")
	groups.Use(middlewares.Auth(d.Tokens))
	groups.Use(middlewares.RateLimit(d.Limiter, d.Config.RateLimit, "api"))
	{
		groups.POST("", d.Groups.Create)
		groups.GET("", d.Groups.List)
		groups.GET("/:id", d.Groups.Get)
		groups.POST("/:id/join", d.Groups.Join)
		groups.POST("/:id/leave", d.Groups.Leave)
		groups.POST("/:id/pause", d.Groups.Pause)
		groups.POST("/:id/resume", d.Groups.Resume)

		groups.GET("/:id/turn-order", d.Cycles.TurnOrder)
		groups.GET("/:id/payment-status", d.Cycles.PaymentStatus)
		groups.GET("/:id/completion", d.Cycles.Completion)
		groups.POST("/:id/cycles/open", d.Cycles.OpenCycle)
		groups.POST("/:id/process-cycle", d.Cycles.ProcessCycle)
		groups.POST("/:id/contributions/:contributionId/pay", d.Cycles.RecordContribution)
		groups.POST("/:id/sweep-overdue", d.Cycles.SweepOverdue)
		groups.POST("/:id/reminders", d.Cycles.SendReminders)

		groups.GET("/:id/payouts", d.Cycles.ListPayouts)
		groups.POST("/:id/payouts/:payoutId/processing", d.Cycles.MarkPayoutProcessing)
		groups.POST("/:id/payouts/:payoutId/complete", d.Cycles.CompletePayout)
		groups.POST("/:id/payouts/:payoutId/fail", d.Cycles.FailPayout)
		groups.POST("/:id/payouts/:payoutId/retry", d.Cycles.RetryPayout)
	}
}
