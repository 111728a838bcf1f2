package guardrails

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loadNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

type fakeRepo struct {
	constraints []RawConstraintRow
	rules       []RawRuleRow
	heuristics  []RawHeuristicRow

	constraintsErr error
	rulesErr       error
	heuristicsErr  error

	calls atomic.Int32
}

func (r *fakeRepo) LoadConstraints(_ context.Context, _ string) (*ConstraintsResult, error) {
	r.calls.Add(1)
	if r.constraintsErr != nil {
		return nil, r.constraintsErr
	}
	return &ConstraintsResult{Constraints: r.constraints}, nil
}

func (r *fakeRepo) LoadRecipeAdaptationRules(_ context.Context, _ string) (*RulesResult, error) {
	r.calls.Add(1)
	if r.rulesErr != nil {
		return nil, r.rulesErr
	}
	return &RulesResult{Rules: r.rules}, nil
}

func (r *fakeRepo) LoadHeuristics(_ context.Context, _ string) (*HeuristicsResult, error) {
	r.calls.Add(1)
	if r.heuristicsErr != nil {
		return nil, r.heuristicsErr
	}
	return &HeuristicsResult{Heuristics: r.heuristics}, nil
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func sampleRepo() *fakeRepo {
	return &fakeRepo{
		constraints: []RawConstraintRow{
			{
				ID:             "c2",
				DietTypeID:     "keto",
				ConstraintType: "forbidden",
				RuleAction:     "block",
				Strictness:     "hard",
				RulePriority:   intPtr(80),
				IsActive:       boolPtr(true),
				Category: &RawCategory{
					ID: "cat-grains", Code: "grains", NameNL: "Granen", IsActive: boolPtr(true),
					Items: []RawCategoryItem{
						{ID: "i-rice", Term: "Rice", TermNL: strPtr("Rijst"), Synonyms: []string{"basmati", "Jasmine Rice"}},
						{ID: "i-pasta", Term: "pasta", Synonyms: []string{"spaghetti"}},
					},
				},
			},
			{
				ID:             "c1",
				ConstraintType: "required",
				IsActive:       boolPtr(true),
				Category: &RawCategory{
					ID: "cat-veg", Code: "vegetables", NameNL: "Groenten",
					Items: []RawCategoryItem{{ID: "i-broc", Term: "broccoli"}},
				},
			},
		},
		rules: []RawRuleRow{
			{
				ID: "r1", Term: " Sugar ", Synonyms: []string{"suiker", "SUGAR", ""},
				RuleCode: "NO_SUGAR", RuleLabel: "Geen suiker",
				SubstitutionSuggestions: []string{"erythritol", " "}, Priority: intPtr(70),
			},
			{ID: "r2", Term: "honey", IsActive: boolPtr(false)},
		},
		heuristics: []RawHeuristicRow{
			{ID: "h1", HeuristicType: "added_sugar", Terms: []string{"Suiker", "siroop"}},
			{ID: "h2", HeuristicType: "added_sugar", Terms: []string{"honing", "suiker"}},
			{ID: "h3", HeuristicType: "ultra_processed", Terms: []string{"E621"}},
			{ID: "h4", HeuristicType: "added_sugar", Terms: []string{"stroop"}, IsActive: boolPtr(false)},
		},
	}
}

func TestLoadRuleset_FromDatabase(t *testing.T) {
	repo := sampleRepo()
	rs, err := LoadRuleset(context.Background(), repo, "keto", ModeRecipeAdaptation, WithNow(loadNow))
	require.NoError(t, err)

	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, SourceDatabase, rs.Provenance.Source)
	assert.Equal(t, loadNow, rs.Provenance.LoadedAt)
	assert.Equal(t, "keto", rs.DietID)
	assert.Equal(t, ModeRecipeAdaptation, rs.Mode)

	ids := make([]string, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"db:diet_category_constraints:c1:i-broc",
		"db:diet_category_constraints:c2:i-pasta",
		"db:diet_category_constraints:c2:i-rice",
		"db:recipe_adaptation_rules:r1",
	}, ids)

	broc := rs.Rules[0]
	assert.Equal(t, ActionAllow, broc.Action)
	assert.True(t, broc.Metadata.IsNonEnforcingAllow)
	assert.Equal(t, StrictnessHard, broc.Strictness)
	assert.Equal(t, 50, broc.Priority)

	rice := rs.Rules[2]
	assert.Equal(t, "rice", rice.Match.Term)
	assert.Equal(t, []string{"basmati", "jasmine rice", "rijst"}, rice.Match.Synonyms)
	assert.Equal(t, ActionBlock, rice.Action)
	assert.Equal(t, 80, rice.Priority)
	assert.Equal(t, "Granen", rice.Metadata.RuleLabel)

	sugar := rs.Rules[3]
	assert.Equal(t, "sugar", sugar.Match.Term)
	assert.Equal(t, []string{"suiker"}, sugar.Match.Synonyms)
	assert.Equal(t, ActionBlock, sugar.Action)
	assert.Empty(t, sugar.Strictness)
	assert.Equal(t, "Geen suiker", sugar.Metadata.RuleLabel)
	assert.Equal(t, []string{"erythritol"}, sugar.Metadata.SubstitutionSuggestions)

	assert.Equal(t, []string{"honing", "siroop", "suiker"}, rs.Heuristics.AddedSugarTerms)
	assert.Equal(t, map[string][]string{"ultra_processed": {"e621"}}, rs.Heuristics.Other)

	require.Len(t, rs.Provenance.Metadata.Sources, 3)
	assert.Equal(t, map[string]int{"rows": 2, "rules": 3}, rs.Provenance.Metadata.Sources[0].Details)
	assert.Equal(t, map[string]int{"rows": 2, "rules": 1}, rs.Provenance.Metadata.Sources[1].Details)
	assert.Equal(t, map[string]int{"rows": 4, "types": 2}, rs.Provenance.Metadata.Sources[2].Details)
	assert.Len(t, rs.ContentHash, 64)
}

func TestLoadRuleset_DutchLocalePrefersDutchTerm(t *testing.T) {
	rs, err := LoadRuleset(context.Background(), sampleRepo(), "keto", ModeMealPlanner, WithLocale("nl-NL"), WithNow(loadNow))
	require.NoError(t, err)

	rice := rs.Rules[2]
	assert.Equal(t, "db:diet_category_constraints:c2:i-rice", rice.ID, "ids do not depend on locale")
	assert.Equal(t, "rijst", rice.Match.Term)
	assert.Equal(t, []string{"basmati", "jasmine rice", "rice"}, rice.Match.Synonyms)
	assert.Equal(t, "nl-NL", rs.Locale)
}

func TestLoadRuleset_IsDeterministic(t *testing.T) {
	first, err := LoadRuleset(context.Background(), sampleRepo(), "keto", ModeRecipeAdaptation, WithNow(loadNow))
	require.NoError(t, err)

	repo := sampleRepo()
	// 來源順序不同不影響結果
	repo.constraints[0], repo.constraints[1] = repo.constraints[1], repo.constraints[0]
	second, err := LoadRuleset(context.Background(), repo, "keto", ModeRecipeAdaptation, WithNow(loadNow))
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.Rules, second.Rules)
}

func TestLoadRuleset_HashChangesWithContent(t *testing.T) {
	base, err := LoadRuleset(context.Background(), sampleRepo(), "keto", "", WithNow(loadNow))
	require.NoError(t, err)

	mutations := map[string]func(r *fakeRepo){
		"priority": func(r *fakeRepo) { r.rules[0].Priority = intPtr(71) },
		"action":   func(r *fakeRepo) { r.constraints[0].RuleAction = "allow" },
		"term":     func(r *fakeRepo) { r.rules[0].Term = "cane sugar" },
		"synonyms": func(r *fakeRepo) { r.rules[0].Synonyms = append(r.rules[0].Synonyms, "sucrose") },
		"membership": func(r *fakeRepo) {
			r.constraints[0].Category.Items[1].IsActive = boolPtr(false)
		},
		"heuristics": func(r *fakeRepo) { r.heuristics[0].Terms = append(r.heuristics[0].Terms, "melasse") },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			repo := sampleRepo()
			mutate(repo)
			rs, err := LoadRuleset(context.Background(), repo, "keto", "", WithNow(loadNow))
			require.NoError(t, err)
			assert.NotEqual(t, base.ContentHash, rs.ContentHash)
		})
	}

	later, err := LoadRuleset(context.Background(), sampleRepo(), "keto", "", WithNow(loadNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, base.ContentHash, later.ContentHash, "load time is provenance only")
}

func TestLoadRuleset_FallbackWhenEmpty(t *testing.T) {
	rs, err := LoadRuleset(context.Background(), &fakeRepo{}, "vegan", ModeRecipeAdaptation, WithNow(loadNow))
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, rs.Provenance.Source)
	assert.NotEmpty(t, rs.Rules)
	for _, r := range rs.Rules {
		assert.Contains(t, r.ID, "fallback:")
	}
	assert.NotEmpty(t, rs.Heuristics.AddedSugarTerms)
	assert.Equal(t, "vegan", rs.DietID)
	assert.NotEmpty(t, rs.ContentHash)
}

func TestLoadRuleset_FallbackWhenEverythingFiltered(t *testing.T) {
	repo := &fakeRepo{
		constraints: []RawConstraintRow{{ID: "c1", ConstraintType: "forbidden", IsActive: boolPtr(false),
			Category: &RawCategory{ID: "x", Items: []RawCategoryItem{{ID: "i1", Term: "rice"}}}}},
		rules:      []RawRuleRow{{ID: "r1", Term: "sugar", IsActive: boolPtr(false)}},
		heuristics: []RawHeuristicRow{{ID: "h1", HeuristicType: "added_sugar", Terms: []string{"stroop"}}},
	}
	rs, err := LoadRuleset(context.Background(), repo, "keto", "", WithNow(loadNow))
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, rs.Provenance.Source)
	assert.Equal(t, fallbackHeuristics(), rs.Heuristics)
}

func TestLoadRuleset_PropagatesRepoErrors(t *testing.T) {
	boom := errors.New("connection reset")
	cases := map[string]func(r *fakeRepo){
		"constraints": func(r *fakeRepo) { r.constraintsErr = boom },
		"rules":       func(r *fakeRepo) { r.rulesErr = boom },
		"heuristics":  func(r *fakeRepo) { r.heuristicsErr = boom },
	}
	for name, inject := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &fakeRepo{}
			inject(repo)
			rs, err := LoadRuleset(context.Background(), repo, "keto", "")
			assert.Nil(t, rs, "no fallback on error")
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, boom, err, "error is returned unwrapped")
		})
	}
}

func TestLoadRuleset_DuplicateIDsKeepHigherPriority(t *testing.T) {
	repo := &fakeRepo{
		rules: []RawRuleRow{
			{ID: "r1", Term: "sugar", Priority: intPtr(10)},
			{ID: "r1", Term: "sugar", Priority: intPtr(90)},
			{ID: "r1", Term: "sugar", Priority: intPtr(90), RuleLabel: "later"},
		},
	}
	rs, err := LoadRuleset(context.Background(), repo, "keto", "")
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, 90, rs.Rules[0].Priority)
	assert.Empty(t, rs.Rules[0].Metadata.RuleLabel)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRecipeAdaptation, m)

	m, err = ParseMode("plan_chat")
	require.NoError(t, err)
	assert.Equal(t, ModePlanChat, m)

	_, err = ParseMode("admin")
	assert.Error(t, err)
}
