package api

import (
	"fmt"
	"time"

	guardrailsHandler "meal-guardrails/internal/api/handlers/guardrails"
	"meal-guardrails/internal/api/handlers/health"
	preferenceHandler "meal-guardrails/internal/api/handlers/preference"
	scoringHandler "meal-guardrails/internal/api/handlers/scoring"
	"meal-guardrails/internal/api/middleware"
	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/core/preference"
	"meal-guardrails/internal/core/queue"
	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/infrastructure/metrics"
	"meal-guardrails/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies 路由使用的服務
type Dependencies struct {
	Guardrails  *guardrails.Service
	Scoring     *scoring.Service
	Queue       *queue.Manager
	Matcher     *preference.Matcher
	ReadyChecks map[string]health.ReadyCheck
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Guardrails == nil || deps.Scoring == nil || deps.Queue == nil {
		return nil, fmt.Errorf("guardrails, scoring and queue services are required")
	}
	if deps.Matcher == nil {
		deps.Matcher = preference.NewDefaultMatcher()
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Job-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 健康檢查與指標路由不受限流影響
	healthHandler := health.NewHandler(cfg, deps.Queue, deps.ReadyChecks)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(middleware.Deduplication(cfg))
	{
		gh := guardrailsHandler.NewHandler(deps.Guardrails)
		api.GET("/diets/:dietId/guardrails", gh.HandleGetRuleset)
		api.POST("/diets/:dietId/guardrails/evaluate", gh.HandleEvaluate)
		api.POST("/guardrails/targets", gh.HandleTargets)

		sh := scoringHandler.NewHandler(deps.Scoring, deps.Queue)
		api.POST("/scores/compute", sh.HandleCompute)
		api.POST("/users/:userId/meals/rescore", sh.HandleRescore)
		api.POST("/users/:userId/meals/:mealId/usage", sh.HandleRecordUsage)

		ph := preferenceHandler.NewHandler(deps.Matcher)
		api.POST("/preferences/match", ph.HandleMatch)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
