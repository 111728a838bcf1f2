package guardrails

import (
	"net/http"

	guardrailsCore "meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DraftRequest 草稿請求
type DraftRequest struct {
	guardrailsCore.Draft
	Locale string `json:"locale,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// Handler 規則集處理程序
type Handler struct {
	service *guardrailsCore.Service
}

// NewHandler 創建規則集處理程序
func NewHandler(service *guardrailsCore.Service) *Handler {
	return &Handler{service: service}
}

// HandleGetRuleset 取得飲食類型的規則集
func (h *Handler) HandleGetRuleset(c *gin.Context) {
	requestID := common.RequestID(c)
	dietID := c.Param("dietId")

	mode, err := guardrailsCore.ParseMode(c.Query("mode"))
	if err != nil {
		common.WriteError(c, err)
		return
	}

	rs, err := h.service.Load(c.Request.Context(), dietID, mode, c.Query("locale"))
	if err != nil {
		common.WriteError(c, err)
		return
	}

	common.LogDebug("規則集請求完成",
		zap.String("request_id", requestID),
		zap.String("diet_id", dietID),
		zap.String("source", rs.Provenance.Source),
	)
	c.JSON(http.StatusOK, rs)
}

// HandleTargets 將草稿拆成檢查目標
func (h *Handler) HandleTargets(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, guardrailsCore.MapDraftToTargets(req.Draft, req.Locale))
}

// HandleEvaluate 以飲食類型的規則集檢查草稿
func (h *Handler) HandleEvaluate(c *gin.Context) {
	requestID := common.RequestID(c)
	dietID := c.Param("dietId")

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	mode, err := guardrailsCore.ParseMode(req.Mode)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	ev, err := h.service.Evaluate(c.Request.Context(), dietID, mode, req.Locale, req.Draft)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	common.LogInfo("草稿檢查完成",
		zap.String("request_id", requestID),
		zap.String("diet_id", dietID),
		zap.Bool("ok", ev.OK),
		zap.Int("findings", len(ev.Findings)),
	)
	c.JSON(http.StatusOK, ev)
}
