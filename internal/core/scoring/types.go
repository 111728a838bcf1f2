package scoring

import (
	"context"
	"time"
)

// MealHistoryRecord 使用者對某道餐點的歷史紀錄與分數
type MealHistoryRecord struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	MealID         string     `json:"meal_id"`
	MealName       string     `json:"meal_name,omitempty"`
	UserRating     *int       `json:"user_rating"`
	NutritionScore *float64   `json:"nutrition_score"`
	VarietyScore   float64    `json:"variety_score"`
	CombinedScore  float64    `json:"combined_score"`
	UsageCount     int        `json:"usage_count"`
	LastUsedAt     *time.Time `json:"last_used_at"`
}

// HistoryStore 餐點歷史的儲存介面
type HistoryStore interface {
	// ListByUser 取得使用者所有餐點紀錄
	ListByUser(ctx context.Context, userID string) ([]MealHistoryRecord, error)

	// UpdateScores 更新單筆紀錄的分數
	UpdateScores(ctx context.Context, id string, varietyScore, combinedScore float64) error

	// RecordUsage 使用次數加一並更新最後使用時間，回傳更新後的紀錄
	RecordUsage(ctx context.Context, userID, mealID string, at time.Time) (*MealHistoryRecord, error)
}

// ScoreInput 單次分數計算輸入
type ScoreInput struct {
	UserRating     *int       `json:"user_rating"`
	NutritionScore *float64   `json:"nutrition_score"`
	UsageCount     int        `json:"usage_count"`
	LastUsedAt     *time.Time `json:"last_used_at"`
}

// ScoreResult 單次分數計算結果
type ScoreResult struct {
	VarietyScore  float64 `json:"variety_score"`
	CombinedScore float64 `json:"combined_score"`
	Weights       Weights `json:"weights"`
}

// BatchResult 批次重新評分結果
type BatchResult struct {
	UserID    string        `json:"user_id"`
	Total     int           `json:"total"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Errors    []string      `json:"errors,omitempty"`

	// Err 彙整所有單筆失敗（multierr），不輸出到 JSON
	Err error `json:"-"`
}
