package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meal-guardrails/internal/infrastructure/metrics"
	"meal-guardrails/internal/pkg/common"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service 餐點評分服務
type Service struct {
	store   HistoryStore
	weights Weights
	workers int
	now     func() time.Time
}

// Option 服務選項
type Option func(*Service)

// WithWorkers 設定批次重新評分的並行數
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock 設定時間來源
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 創建評分服務
func NewService(store HistoryStore, weights Weights, opts ...Option) (*Service, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:   store,
		weights: weights,
		workers: 4,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Weights 目前使用的權重
func (s *Service) Weights() Weights {
	return s.weights
}

// Score 計算單筆分數，不讀寫儲存
func (s *Service) Score(in ScoreInput) ScoreResult {
	variety := CalculateVarietyScore(in.UsageCount, in.LastUsedAt, s.now())
	return ScoreResult{
		VarietyScore:  variety,
		CombinedScore: CalculateCombinedScore(in.UserRating, in.NutritionScore, variety, s.weights),
		Weights:       s.weights,
	}
}

// rescore 計算紀錄的新分數
func (s *Service) rescore(rec MealHistoryRecord, now time.Time) (float64, float64) {
	variety := CalculateVarietyScore(rec.UsageCount, rec.LastUsedAt, now)
	combined := CalculateCombinedScore(rec.UserRating, rec.NutritionScore, variety, s.weights)
	return variety, combined
}

// RescoreUser 重新計算使用者所有餐點的多樣性與綜合分數
//
// 單筆失敗不會中斷批次，所有錯誤彙整在 BatchResult.Err；分數未變的紀錄不寫入，
// 因此重複執行不會產生額外寫入。只有讀取清單失敗時才回傳 error。
func (s *Service) RescoreUser(ctx context.Context, userID string) (*BatchResult, error) {
	start := time.Now()

	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list meal history for user %s: %w", userID, err)
	}

	now := s.now()
	result := &BatchResult{UserID: userID, Total: len(records)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			variety, combined := s.rescore(rec, now)
			if variety == rec.VarietyScore && combined == rec.CombinedScore {
				mu.Lock()
				result.Unchanged++
				mu.Unlock()
				return nil
			}

			err := s.store.UpdateScores(gctx, rec.ID, variety, combined)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Err = multierr.Append(result.Err, fmt.Errorf("meal %s: %w", rec.MealID, err))
				return nil
			}
			result.Updated++
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range multierr.Errors(result.Err) {
		result.Errors = append(result.Errors, e.Error())
	}
	result.Duration = time.Since(start)
	metrics.ObserveRescore(result.Updated, result.Unchanged, result.Failed, result.Duration)

	if result.Failed > 0 {
		common.LogWarn("批次重新評分部分失敗",
			zap.String("user_id", userID),
			zap.Int("total", result.Total),
			zap.Int("failed", result.Failed),
			zap.Error(result.Err),
		)
	} else {
		common.LogInfo("批次重新評分完成",
			zap.String("user_id", userID),
			zap.Int("total", result.Total),
			zap.Int("updated", result.Updated),
			zap.Int("unchanged", result.Unchanged),
			zap.Duration("耗時", result.Duration),
		)
	}

	return result, nil
}

// RecordUsage 記錄一次餐點使用並重新計算該餐點的分數
func (s *Service) RecordUsage(ctx context.Context, userID, mealID string, at time.Time) (*MealHistoryRecord, error) {
	if at.IsZero() {
		at = s.now()
	}
	rec, err := s.store.RecordUsage(ctx, userID, mealID, at)
	if err != nil {
		return nil, fmt.Errorf("record usage of meal %s: %w", mealID, err)
	}

	variety, combined := s.rescore(*rec, s.now())
	if err := s.store.UpdateScores(ctx, rec.ID, variety, combined); err != nil {
		return nil, fmt.Errorf("update scores of meal %s: %w", mealID, err)
	}
	rec.VarietyScore = variety
	rec.CombinedScore = combined

	common.LogDebug("餐點使用已記錄",
		zap.String("user_id", userID),
		zap.String("meal_id", mealID),
		zap.Int("usage_count", rec.UsageCount),
		zap.Float64("combined_score", combined),
	)
	return rec, nil
}
