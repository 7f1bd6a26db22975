// Package facade centralizes HTTP routing, rate limiting, and metrics for
// every component (Registry, Escrow, Revenue, Cross-Chain, Compliance,
// Notify) behind one gin.Engine, generalising the teacher's
// cmd/registry/main.go router-construction block and its
// internal/registry/handler package's ratelimit/metrics middleware into a
// single reusable layer shared by every component instead of being
// registry-specific.
package facade

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/crosschain"
	escrowservice "github.com/cardanoagents/enhanced-client/internal/escrow/service"
	"github.com/cardanoagents/enhanced-client/internal/notify"
	registryservice "github.com/cardanoagents/enhanced-client/internal/registry/service"
	revenueservice "github.com/cardanoagents/enhanced-client/internal/revenue/service"
)

// Config controls the HTTP surface independent of any one component.
type Config struct {
	CORSOrigins  []string
	RateLimitRPS int
}

// Components bundles every wired service the facade dispatches to.
type Components struct {
	Registry   *registryservice.RegistryService
	Escrow     *escrowservice.EscrowService
	Revenue    *revenueservice.RevenueService
	CrossChain *crosschain.Service
	Compliance *complianceservice.Gate
	Notify     *notify.Service
}

// NewRouter builds the gin.Engine serving every component's HTTP surface.
func NewRouter(cfg Config, comps Components, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}

	router.Use(PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	if comps.Registry != nil {
		NewRegistryHandler(comps.Registry, logger).Register(v1)
	}
	if comps.Escrow != nil {
		NewEscrowHandler(comps.Escrow, logger).Register(v1)
	}
	if comps.Revenue != nil {
		NewRevenueHandler(comps.Revenue, logger).Register(v1)
	}
	if comps.CrossChain != nil {
		NewCrossChainHandler(comps.CrossChain, logger).Register(v1)
	}
	if comps.Compliance != nil {
		NewComplianceHandler(comps.Compliance, logger).Register(v1)
	}
	if comps.Notify != nil {
		NewNotifyHandler(comps.Notify, logger).Register(v1)
	}

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
