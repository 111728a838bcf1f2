package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	restPath = "/rest/v1"

	tableMealHistory = "meal_history"

	constraintSelect = "*,ingredient_categories(*,ingredient_category_items(*))"

	// 樂觀鎖衝突時的重試次數
	usageRetries = 3
)

// Client 透過 PostgREST 讀寫託管資料庫
type Client struct {
	client *resty.Client
}

var (
	_ guardrails.Repo      = (*Client)(nil)
	_ scoring.HistoryStore = (*Client)(nil)
)

// NewClient 創建 PostgREST 客戶端
func NewClient(cfg *config.SupabaseConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+restPath).
		SetTimeout(timeout).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Accept", "application/json")

	common.LogInfo("Supabase 客戶端已初始化",
		zap.String("url", cfg.URL),
		zap.String("api_key", config.MaskSecret(cfg.APIKey)),
	)
	return &Client{client: client}
}

// get 查詢資料表並解析為 result
func (c *Client) get(ctx context.Context, table string, params map[string]string, result interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		Get("/" + table)
	if err != nil {
		return common.Wrap(common.ErrRepoUnavailable, fmt.Errorf("query %s: %w", table, err))
	}
	if resp.IsError() {
		return common.Wrap(common.ErrRepoUnavailable, fmt.Errorf("query %s: status %d: %s", table, resp.StatusCode(), resp.String()))
	}
	return nil
}

// patch 更新資料表並回傳更新後的列
func (c *Client) patch(ctx context.Context, table string, params map[string]string, body interface{}, result interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParams(params).
		SetBody(body).
		SetResult(result).
		Patch("/" + table)
	if err != nil {
		return common.Wrap(common.ErrRepoUnavailable, fmt.Errorf("update %s: %w", table, err))
	}
	if resp.IsError() {
		return common.Wrap(common.ErrRepoUnavailable, fmt.Errorf("update %s: status %d: %s", table, resp.StatusCode(), resp.String()))
	}
	return nil
}

func eq(v string) string {
	return "eq." + v
}

// LoadConstraints 讀取類別限制，類別與項目以巢狀方式一併取得
func (c *Client) LoadConstraints(ctx context.Context, dietID string) (*guardrails.ConstraintsResult, error) {
	rows := []guardrails.RawConstraintRow{}
	err := c.get(ctx, guardrails.TableConstraints, map[string]string{
		"select":       constraintSelect,
		"diet_type_id": eq(dietID),
		"order":        "id",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return &guardrails.ConstraintsResult{Constraints: rows}, nil
}

// LoadRecipeAdaptationRules 讀取詞彙規則
func (c *Client) LoadRecipeAdaptationRules(ctx context.Context, dietID string) (*guardrails.RulesResult, error) {
	rows := []guardrails.RawRuleRow{}
	err := c.get(ctx, guardrails.TableRules, map[string]string{
		"select":       "*",
		"diet_type_id": eq(dietID),
		"order":        "id",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return &guardrails.RulesResult{Rules: rows}, nil
}

// LoadHeuristics 讀取啟發式詞表
func (c *Client) LoadHeuristics(ctx context.Context, dietID string) (*guardrails.HeuristicsResult, error) {
	rows := []guardrails.RawHeuristicRow{}
	err := c.get(ctx, guardrails.TableHeuristics, map[string]string{
		"select":       "*",
		"diet_type_id": eq(dietID),
		"order":        "id",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return &guardrails.HeuristicsResult{Heuristics: rows}, nil
}

// ListByUser 取得使用者所有餐點紀錄
func (c *Client) ListByUser(ctx context.Context, userID string) ([]scoring.MealHistoryRecord, error) {
	rows := []scoring.MealHistoryRecord{}
	err := c.get(ctx, tableMealHistory, map[string]string{
		"select":  "*",
		"user_id": eq(userID),
		"order":   "id",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateScores 更新單筆紀錄的分數
func (c *Client) UpdateScores(ctx context.Context, id string, varietyScore, combinedScore float64) error {
	var updated []scoring.MealHistoryRecord
	err := c.patch(ctx, tableMealHistory,
		map[string]string{"id": eq(id)},
		map[string]float64{"variety_score": varietyScore, "combined_score": combinedScore},
		&updated,
	)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return common.Wrap(common.ErrNotFound, fmt.Errorf("meal history %s", id))
	}
	return nil
}

// RecordUsage 使用次數加一並更新最後使用時間
//
// 以 usage_count 作為樂觀鎖條件，並行更新衝突時重新讀取後重試。
func (c *Client) RecordUsage(ctx context.Context, userID, mealID string, at time.Time) (*scoring.MealHistoryRecord, error) {
	for attempt := 0; attempt < usageRetries; attempt++ {
		var current []scoring.MealHistoryRecord
		err := c.get(ctx, tableMealHistory, map[string]string{
			"select":  "*",
			"user_id": eq(userID),
			"meal_id": eq(mealID),
			"limit":   "1",
		}, &current)
		if err != nil {
			return nil, err
		}
		if len(current) == 0 {
			return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("meal %s for user %s", mealID, userID))
		}
		rec := current[0]

		var updated []scoring.MealHistoryRecord
		err = c.patch(ctx, tableMealHistory,
			map[string]string{
				"id":          eq(rec.ID),
				"usage_count": eq(fmt.Sprint(rec.UsageCount)),
			},
			map[string]interface{}{
				"usage_count":  rec.UsageCount + 1,
				"last_used_at": at.UTC().Format(time.RFC3339Nano),
			},
			&updated,
		)
		if err != nil {
			return nil, err
		}
		if len(updated) > 0 {
			return &updated[0], nil
		}
		common.LogDebug("餐點使用次數更新衝突，重試",
			zap.String("meal_id", mealID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, common.Wrap(common.ErrConflict, fmt.Errorf("usage of meal %s for user %s changed concurrently", mealID, userID))
}
