package database

import (
	"context"
	"errors"

	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/pkg/common"

	"gorm.io/gorm"
)

// GuardrailsRepo 以關聯式資料庫實作 guardrails.Repo
type GuardrailsRepo struct {
	db *gorm.DB
}

var _ guardrails.Repo = (*GuardrailsRepo)(nil)

// NewGuardrailsRepo 創建規則來源
func NewGuardrailsRepo(db *gorm.DB) *GuardrailsRepo {
	return &GuardrailsRepo{db: db}
}

// dietDisabled 飲食類型存在且被明確停用
func (r *GuardrailsRepo) dietDisabled(ctx context.Context, dietID string) (bool, error) {
	var diet DietType
	err := r.db.WithContext(ctx).Where("id = ?", dietID).First(&diet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, common.Wrap(common.ErrRepoUnavailable, err)
	}
	return diet.IsActive != nil && !*diet.IsActive, nil
}

// LoadConstraints 讀取類別限制與其類別、項目
func (r *GuardrailsRepo) LoadConstraints(ctx context.Context, dietID string) (*guardrails.ConstraintsResult, error) {
	res := &guardrails.ConstraintsResult{Constraints: []guardrails.RawConstraintRow{}}
	if disabled, err := r.dietDisabled(ctx, dietID); err != nil || disabled {
		return res, err
	}

	var rows []DietCategoryConstraint
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Category.Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("diet_type_id = ?", dietID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, common.Wrap(common.ErrRepoUnavailable, err)
	}

	for _, row := range rows {
		raw := guardrails.RawConstraintRow{
			ID:             row.ID,
			DietTypeID:     row.DietTypeID,
			CategoryID:     row.CategoryID,
			ConstraintType: row.ConstraintType,
			RuleAction:     row.RuleAction,
			Strictness:     row.Strictness,
			RulePriority:   row.RulePriority,
			Priority:       row.Priority,
			IsActive:       row.IsActive,
		}
		if cat := row.Category; cat != nil {
			rc := &guardrails.RawCategory{
				ID:       cat.ID,
				Code:     cat.Code,
				NameNL:   cat.NameNL,
				IsActive: cat.IsActive,
			}
			for _, item := range cat.Items {
				rc.Items = append(rc.Items, guardrails.RawCategoryItem{
					ID:       item.ID,
					Term:     item.Term,
					TermNL:   item.TermNL,
					Synonyms: item.Synonyms,
					IsActive: item.IsActive,
				})
			}
			raw.Category = rc
		}
		res.Constraints = append(res.Constraints, raw)
	}
	return res, nil
}

// LoadRecipeAdaptationRules 讀取詞彙規則
func (r *GuardrailsRepo) LoadRecipeAdaptationRules(ctx context.Context, dietID string) (*guardrails.RulesResult, error) {
	res := &guardrails.RulesResult{Rules: []guardrails.RawRuleRow{}}
	if disabled, err := r.dietDisabled(ctx, dietID); err != nil || disabled {
		return res, err
	}

	var rows []RecipeAdaptationRule
	if err := r.db.WithContext(ctx).Where("diet_type_id = ?", dietID).Order("id").Find(&rows).Error; err != nil {
		return nil, common.Wrap(common.ErrRepoUnavailable, err)
	}
	for _, row := range rows {
		res.Rules = append(res.Rules, guardrails.RawRuleRow{
			ID:                      row.ID,
			DietTypeID:              row.DietTypeID,
			Term:                    row.Term,
			Synonyms:                row.Synonyms,
			RuleCode:                row.RuleCode,
			RuleLabel:               row.RuleLabel,
			SubstitutionSuggestions: row.SubstitutionSuggestions,
			Priority:                row.Priority,
			IsActive:                row.IsActive,
		})
	}
	return res, nil
}

// LoadHeuristics 讀取啟發式詞表
func (r *GuardrailsRepo) LoadHeuristics(ctx context.Context, dietID string) (*guardrails.HeuristicsResult, error) {
	res := &guardrails.HeuristicsResult{Heuristics: []guardrails.RawHeuristicRow{}}
	if disabled, err := r.dietDisabled(ctx, dietID); err != nil || disabled {
		return res, err
	}

	var rows []RecipeAdaptationHeuristic
	if err := r.db.WithContext(ctx).Where("diet_type_id = ?", dietID).Order("id").Find(&rows).Error; err != nil {
		return nil, common.Wrap(common.ErrRepoUnavailable, err)
	}
	for _, row := range rows {
		res.Heuristics = append(res.Heuristics, guardrails.RawHeuristicRow{
			ID:            row.ID,
			DietTypeID:    row.DietTypeID,
			HeuristicType: row.HeuristicType,
			Terms:         row.Terms,
			IsActive:      row.IsActive,
		})
	}
	return res, nil
}
