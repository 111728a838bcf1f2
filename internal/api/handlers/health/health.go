package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"meal-guardrails/internal/core/queue"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadyCheck 就緒檢查，回傳 error 表示依賴尚不可用
type ReadyCheck func(ctx context.Context) error

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Handler 健康檢查處理程序
type Handler struct {
	config *config.Config
	queue  *queue.Manager
	checks map[string]ReadyCheck
}

// NewHandler 創建健康檢查處理程序；queue 可為 nil
func NewHandler(cfg *config.Config, q *queue.Manager, checks map[string]ReadyCheck) *Handler {
	return &Handler{config: cfg, queue: q, checks: checks}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.config.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.GetQueueStatus()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		common.LogWarn("就緒檢查失敗", zap.Any("failed", failed))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
