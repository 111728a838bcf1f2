package preference

import (
	"net/http"

	preferenceCore "meal-guardrails/internal/core/preference"
	"meal-guardrails/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// MatchRequest 偏好比對請求
type MatchRequest struct {
	Items       []preferenceCore.Item `json:"items" binding:"required"`
	Preferences []string              `json:"preferences"`
}

// MatchResponse 偏好比對結果
type MatchResponse struct {
	Items []preferenceCore.Item `json:"items"`
	Count int                   `json:"count"`
}

// Handler 偏好比對處理程序
type Handler struct {
	matcher *preferenceCore.Matcher
}

// NewHandler 創建偏好比對處理程序
func NewHandler(matcher *preferenceCore.Matcher) *Handler {
	return &Handler{matcher: matcher}
}

// HandleMatch 篩選符合任一偏好的項目
func (h *Handler) HandleMatch(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	items := h.matcher.Filter(req.Items, req.Preferences)
	c.JSON(http.StatusOK, MatchResponse{Items: items, Count: len(items)})
}
