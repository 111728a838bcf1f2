package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/pkg/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MealHistoryRepo 以關聯式資料庫實作 scoring.HistoryStore
type MealHistoryRepo struct {
	db *gorm.DB
}

var _ scoring.HistoryStore = (*MealHistoryRepo)(nil)

// NewMealHistoryRepo 創建餐點歷史儲存
func NewMealHistoryRepo(db *gorm.DB) *MealHistoryRepo {
	return &MealHistoryRepo{db: db}
}

func toRecord(m MealHistory) scoring.MealHistoryRecord {
	return scoring.MealHistoryRecord{
		ID:             m.ID,
		UserID:         m.UserID,
		MealID:         m.MealID,
		MealName:       m.MealName,
		UserRating:     m.UserRating,
		NutritionScore: m.NutritionScore,
		VarietyScore:   m.VarietyScore,
		CombinedScore:  m.CombinedScore,
		UsageCount:     m.UsageCount,
		LastUsedAt:     m.LastUsedAt,
	}
}

// ListByUser 取得使用者所有餐點紀錄
func (r *MealHistoryRepo) ListByUser(ctx context.Context, userID string) ([]scoring.MealHistoryRecord, error) {
	var rows []MealHistory
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]scoring.MealHistoryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

// UpdateScores 更新單筆紀錄的分數
func (r *MealHistoryRepo) UpdateScores(ctx context.Context, id string, varietyScore, combinedScore float64) error {
	res := r.db.WithContext(ctx).
		Model(&MealHistory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"variety_score":  varietyScore,
			"combined_score": combinedScore,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.Wrap(common.ErrNotFound, fmt.Errorf("meal history %s", id))
	}
	return nil
}

// RecordUsage 使用次數加一並更新最後使用時間
func (r *MealHistoryRepo) RecordUsage(ctx context.Context, userID, mealID string, at time.Time) (*scoring.MealHistoryRecord, error) {
	var row MealHistory
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("user_id = ? AND meal_id = ?", userID, mealID)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.Wrap(common.ErrNotFound, fmt.Errorf("meal %s for user %s", mealID, userID))
			}
			return err
		}

		at = at.UTC()
		row.UsageCount++
		row.LastUsedAt = &at
		return tx.Model(&row).Updates(map[string]interface{}{
			"usage_count":  row.UsageCount,
			"last_used_at": at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	rec := toRecord(row)
	return &rec, nil
}
