package scoring

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"meal-guardrails/internal/core/queue"
	scoringCore "meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UsageRequest 餐點使用事件
type UsageRequest struct {
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// Handler 評分處理程序
type Handler struct {
	service *scoringCore.Service
	queue   *queue.Manager
}

// NewHandler 創建評分處理程序
func NewHandler(service *scoringCore.Service, queue *queue.Manager) *Handler {
	return &Handler{service: service, queue: queue}
}

// HandleCompute 計算單筆分數，不讀寫儲存
func (h *Handler) HandleCompute(c *gin.Context) {
	var in scoringCore.ScoreInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, h.service.Score(in))
}

// HandleRescore 將使用者的批次重新評分排入隊列並等待結果
func (h *Handler) HandleRescore(c *gin.Context) {
	requestID := common.RequestID(c)
	userID := c.Param("userId")
	ctx := c.Request.Context()

	result, err := h.queue.Enqueue(ctx, userID)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	select {
	case res := <-result:
		if res.Error != nil {
			common.WriteError(c, res.Error)
			return
		}
		common.LogInfo("重新評分完成",
			zap.String("request_id", requestID),
			zap.String("job_id", res.JobID),
			zap.String("user_id", userID),
			zap.Int("updated", res.Batch.Updated),
			zap.Int("failed", res.Batch.Failed),
		)
		c.Header("X-Job-ID", res.JobID)
		c.JSON(http.StatusOK, res.Batch)
	case <-ctx.Done():
		common.WriteError(c, common.Wrap(common.ErrGatewayTimeout, fmt.Errorf("rescore of user %s: %w", userID, ctx.Err())))
	}
}

// HandleRecordUsage 記錄一次餐點使用
func (h *Handler) HandleRecordUsage(c *gin.Context) {
	var req UsageRequest
	// 允許空的請求內容
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	var at time.Time
	if req.UsedAt != nil {
		at = *req.UsedAt
	}

	rec, err := h.service.RecordUsage(c.Request.Context(), c.Param("userId"), c.Param("mealId"), at)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
