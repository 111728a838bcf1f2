package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func seedGuardrails(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []interface{}{
		&DietType{ID: "keto", Code: "keto", Name: "Keto", IsActive: boolPtr(true)},
		&DietType{ID: "paused", Code: "paused", Name: "Paused", IsActive: boolPtr(false)},
		&IngredientCategory{ID: "cat-grains", Code: "grains", NameNL: "Granen", IsActive: boolPtr(true)},
		&IngredientCategoryItem{ID: "i-rice", CategoryID: "cat-grains", Term: "rice", TermNL: strPtr("rijst"), Synonyms: []string{"basmati"}},
		&IngredientCategoryItem{ID: "i-oats", CategoryID: "cat-grains", Term: "oats", IsActive: boolPtr(false)},
		&DietCategoryConstraint{ID: "c1", DietTypeID: "keto", CategoryID: "cat-grains", ConstraintType: "forbidden", RulePriority: intPtr(80)},
		&DietCategoryConstraint{ID: "c2", DietTypeID: "paused", CategoryID: "cat-grains", ConstraintType: "forbidden"},
		&RecipeAdaptationRule{ID: "r1", DietTypeID: "keto", Term: "sugar", Synonyms: []string{"suiker"}, RuleLabel: "Geen suiker", SubstitutionSuggestions: []string{"erythritol"}},
		&RecipeAdaptationHeuristic{ID: "h1", DietTypeID: "keto", HeuristicType: "added_sugar", Terms: []string{"honing"}},
	}
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}
}

func TestGuardrailsRepo_LoadsNestedRows(t *testing.T) {
	db := openTestDB(t)
	seedGuardrails(t, db)
	repo := NewGuardrailsRepo(db)
	ctx := context.Background()

	constraints, err := repo.LoadConstraints(ctx, "keto")
	require.NoError(t, err)
	require.Len(t, constraints.Constraints, 1)
	c := constraints.Constraints[0]
	assert.Equal(t, 80, *c.RulePriority)
	require.NotNil(t, c.Category)
	assert.Equal(t, "Granen", c.Category.NameNL)
	require.Len(t, c.Category.Items, 2)
	assert.Equal(t, "i-oats", c.Category.Items[0].ID)
	assert.Equal(t, []string{"basmati"}, c.Category.Items[1].Synonyms)

	rules, err := repo.LoadRecipeAdaptationRules(ctx, "keto")
	require.NoError(t, err)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, []string{"erythritol"}, rules.Rules[0].SubstitutionSuggestions)

	heuristics, err := repo.LoadHeuristics(ctx, "keto")
	require.NoError(t, err)
	require.Len(t, heuristics.Heuristics, 1)
}

func TestGuardrailsRepo_WithLoader(t *testing.T) {
	db := openTestDB(t)
	seedGuardrails(t, db)

	rs, err := guardrails.LoadRuleset(context.Background(), NewGuardrailsRepo(db), "keto", guardrails.ModeMealPlanner)
	require.NoError(t, err)
	assert.Equal(t, guardrails.SourceDatabase, rs.Provenance.Source)

	ids := make([]string, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"db:diet_category_constraints:c1:i-rice",
		"db:recipe_adaptation_rules:r1",
	}, ids)
	assert.Equal(t, []string{"honing"}, rs.Heuristics.AddedSugarTerms)
}

func TestGuardrailsRepo_DisabledOrUnknownDiet(t *testing.T) {
	db := openTestDB(t)
	seedGuardrails(t, db)
	repo := NewGuardrailsRepo(db)

	rs, err := guardrails.LoadRuleset(context.Background(), repo, "paused", "")
	require.NoError(t, err)
	assert.Equal(t, guardrails.SourceFallback, rs.Provenance.Source)

	rs, err = guardrails.LoadRuleset(context.Background(), repo, "unknown", "")
	require.NoError(t, err)
	assert.Equal(t, guardrails.SourceFallback, rs.Provenance.Source)
}

func TestGuardrailsRepo_ClosedDatabase(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Close(db))

	_, err := NewGuardrailsRepo(db).LoadRecipeAdaptationRules(context.Background(), "keto")
	assert.ErrorIs(t, err, common.ErrRepoUnavailable)
}

func TestMealHistoryRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewMealHistoryRepo(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&MealHistory{UserID: "u1", MealID: "m1", MealName: "Omelet", UserRating: intPtr(4)}).Error)
	require.NoError(t, db.Create(&MealHistory{UserID: "u1", MealID: "m2", UsageCount: 3}).Error)
	require.NoError(t, db.Create(&MealHistory{UserID: "u2", MealID: "m1"}).Error)

	records, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	at := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	rec, err := repo.RecordUsage(ctx, "u1", "m2", at)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.UsageCount)
	require.NotNil(t, rec.LastUsedAt)
	assert.True(t, at.Equal(*rec.LastUsedAt))

	require.NoError(t, repo.UpdateScores(ctx, rec.ID, 72, 61.5))
	var stored MealHistory
	require.NoError(t, db.First(&stored, "id = ?", rec.ID).Error)
	assert.Equal(t, 72.0, stored.VarietyScore)
	assert.Equal(t, 61.5, stored.CombinedScore)
	assert.Equal(t, 4, stored.UsageCount)

	_, err = repo.RecordUsage(ctx, "u1", "missing", at)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = repo.UpdateScores(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMealHistoryRepo_RescoreEndToEnd(t *testing.T) {
	db := openTestDB(t)
	repo := NewMealHistoryRepo(db)
	ctx := context.Background()

	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&MealHistory{UserID: "u1", MealID: "m1", UsageCount: 2, LastUsedAt: &last, UserRating: intPtr(5)}).Error)
	require.NoError(t, db.Create(&MealHistory{UserID: "u1", MealID: "m2"}).Error)

	now := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	svc, err := scoring.NewService(repo, scoring.DefaultWeights(), scoring.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	first, err := svc.RescoreUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Updated)

	second, err := svc.RescoreUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)

	records, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	byMeal := map[string]scoring.MealHistoryRecord{}
	for _, r := range records {
		byMeal[r.MealID] = r
	}
	assert.Equal(t, 100.0, byMeal["m1"].VarietyScore)
	assert.Equal(t, 100.0, byMeal["m2"].VarietyScore)
}
