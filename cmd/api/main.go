package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-guardrails/internal/api"
	"meal-guardrails/internal/bootstrap"
	"meal-guardrails/internal/core/queue"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（.env 不存在時略過）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("supabase_api_key", config.MaskSecret(cfg.Supabase.APIKey)),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	services, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		common.LogFatal("Failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := services.Close(); err != nil {
			common.LogError("Failed to release resources", zap.Error(err))
		}
	}()

	rescoreQueue := queue.NewManager(cfg, services.Scoring.RescoreUser)
	defer rescoreQueue.Close()

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Guardrails:  services.Guardrails,
		Scoring:     services.Scoring,
		Queue:       rescoreQueue,
		ReadyChecks: services.ReadyChecks,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		return
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	serverErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		common.LogError("Failed to start server", zap.Error(err))
		return
	}

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
