package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowOrigins []string
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
}

// NewRouter mounts every public, provider and admin route under /api/v1.
func NewRouter(
	cfg RouterConfig,
	affiliates *AffiliateHandler,
	tracking *TrackingHandler,
	ledger *LedgerHandler,
	payouts *PayoutHandler,
	antiFraud *AntiFraudHandler,
) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	if len(cfg.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.AllowOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", AdminHeader}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/affiliates", affiliates.Enroll)
		api.GET("/affiliates/:id", affiliates.Get)
		api.GET("/affiliates/:id/upline", affiliates.Upline)
		api.GET("/affiliates/:id/downline", affiliates.Downline)
		api.POST("/affiliates/:id/parent", affiliates.AttachParent)

		api.GET("/affiliates/:id/balance", ledger.Balance)
		api.GET("/affiliates/:id/commissions", ledger.Entries)

		api.POST("/affiliates/:id/payouts", payouts.Request)
		api.GET("/affiliates/:id/payouts", payouts.List)

		api.POST("/clicks", tracking.RecordClick)
		api.POST("/conversions", tracking.Conversion)

		api.POST("/payouts/callback", payouts.Callback)
	}

	admin := api.Group("/admin", RequireAdmin())
	{
		admin.PUT("/affiliates/:id/parent", affiliates.Reparent)
		admin.PATCH("/affiliates/:id/status", affiliates.SetStatus)
		admin.POST("/affiliates/:id/balance/rebuild", ledger.RebuildBalance)

		admin.GET("/commissions", ledger.Queue)
		admin.POST("/commissions/:id/decision", ledger.Decide)

		admin.POST("/payouts/:id/advance", payouts.Advance)

		admin.GET("/fraud-logs", antiFraud.AuditLogs)
	}

	return router, nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}
