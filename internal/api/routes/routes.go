// Package routes defines API routes.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"proxy-router-platform/internal/api/handlers"
	"proxy-router-platform/internal/api/middleware"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/crypto"
	"proxy-router-platform/internal/repository"
	"proxy-router-platform/internal/service/failover"
	"proxy-router-platform/internal/service/health"
	"proxy-router-platform/internal/service/router"
)

// Services holds all service dependencies.
type Services struct {
	Router       *router.Router
	Assessor     *health.Assessor
	Failover     *failover.Controller
	Accounts     *repository.AccountRepository
	Rules        *repository.RoutingRuleRepository
	ModelConfigs *repository.ModelConfigRepository
	Events       *repository.FailoverEventRepository
	Encryptor    *crypto.Encryptor
	Registry     *prometheus.Registry
}

// Setup configures all API routes.
func Setup(
	engine *gin.Engine,
	cfg *config.Config,
	services *Services,
	logger *zap.Logger,
) {
	corsMiddleware := middleware.NewCORSMiddleware(nil)
	loggingMiddleware := middleware.NewLoggingMiddleware(logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(logger)

	engine.Use(corsMiddleware.Handle())
	engine.Use(loggingMiddleware.Log())
	engine.Use(recoveryMiddleware.Recover())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && services.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{})))
	}

	authMiddleware := middleware.NewAuthMiddleware(&cfg.JWT, logger)

	accountHandler := handlers.NewAccountHandler(services.Accounts, services.Encryptor, logger)
	routingHandler := handlers.NewRoutingHandler(services.Router, services.Rules, services.ModelConfigs, logger)
	healthHandler := handlers.NewHealthHandler(services.Assessor, logger)
	failoverHandler := handlers.NewFailoverHandler(services.Failover, services.Events, logger)

	api := engine.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.POST("/route", routingHandler.Route)

			healthGroup := v1.Group("/health")
			{
				healthGroup.GET("/summary", healthHandler.GetSummary)
				healthGroup.GET("/accounts", healthHandler.GetAccountsHealth)
				healthGroup.GET("/accounts/:id", healthHandler.CheckAccount)
				healthGroup.GET("/accounts/:id/history", healthHandler.GetAccountHistory)
			}

			failoverGroup := v1.Group("/failover")
			{
				failoverGroup.GET("/active", failoverHandler.Active)
				failoverGroup.GET("/events", failoverHandler.ListEvents)
				failoverGroup.GET("/accounts/:id/events", failoverHandler.ListAccountEvents)
			}

			admin := v1.Group("")
			admin.Use(authMiddleware.JWT())
			{
				accounts := admin.Group("/accounts")
				{
					accounts.POST("", accountHandler.Create)
					accounts.GET("", accountHandler.List)
					accounts.GET("/:id", accountHandler.Get)
					accounts.PUT("/:id", accountHandler.Update)
					accounts.PATCH("/:id/enabled", accountHandler.SetEnabled)
					accounts.DELETE("/:id", accountHandler.Delete)
				}

				rules := admin.Group("/rules")
				{
					rules.POST("", routingHandler.CreateRule)
					rules.GET("", routingHandler.ListRules)
					rules.PUT("/:id", routingHandler.UpdateRule)
					rules.DELETE("/:id", routingHandler.DeleteRule)
				}

				modelConfigs := admin.Group("/model-configs")
				{
					modelConfigs.POST("", routingHandler.CreateModelConfig)
					modelConfigs.GET("", routingHandler.ListModelConfigs)
					modelConfigs.PUT("/:id", routingHandler.UpdateModelConfig)
					modelConfigs.DELETE("/:id", routingHandler.DeleteModelConfig)
				}

				adminFailover := admin.Group("/failover")
				{
					adminFailover.POST("/accounts/:id/trigger", failoverHandler.Trigger)
					adminFailover.POST("/accounts/:id/recover", failoverHandler.Recover)
				}

				admin.POST("/health/run", healthHandler.RunCycle)
			}
		}
	}
}
