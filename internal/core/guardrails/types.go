package guardrails

import (
	"context"
	"fmt"
	"time"

	"meal-guardrails/internal/pkg/common"
)

// Action 規則動作
type Action string

const (
	ActionBlock Action = "block"
	ActionAllow Action = "allow"
)

// Strictness 規則嚴格程度
type Strictness string

const (
	StrictnessHard Strictness = "hard"
	StrictnessSoft Strictness = "soft"
)

// Mode 規則集使用情境
type Mode string

const (
	ModeRecipeAdaptation Mode = "recipe_adaptation"
	ModeMealPlanner      Mode = "meal_planner"
	ModePlanChat         Mode = "plan_chat"
)

// ParseMode 解析模式字串，空字串視為 recipe_adaptation
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeRecipeAdaptation, nil
	case ModeRecipeAdaptation, ModeMealPlanner, ModePlanChat:
		return Mode(s), nil
	default:
		return "", common.Wrap(common.ErrInvalidMode, fmt.Errorf("unknown mode %q", s))
	}
}

// 規則來源
const (
	SourceDatabase = "database"
	SourceFallback = "fallback"
)

// 資料表名稱（同時作為規則 ID 前綴）
const (
	TableConstraints = "diet_category_constraints"
	TableRules       = "recipe_adaptation_rules"
	TableHeuristics  = "recipe_adaptation_heuristics"
)

// Match 規則比對詞
type Match struct {
	Term     string   `json:"term"`
	Synonyms []string `json:"synonyms"`
}

// Metadata 規則附加資訊
type Metadata struct {
	IsNonEnforcingAllow     bool     `json:"isNonEnforcingAllow,omitempty"`
	RuleLabel               string   `json:"ruleLabel,omitempty"`
	RuleCode                string   `json:"ruleCode,omitempty"`
	CategoryCode            string   `json:"categoryCode,omitempty"`
	ConstraintType          string   `json:"constraintType,omitempty"`
	SubstitutionSuggestions []string `json:"substitutionSuggestions,omitempty"`
}

// RuleRecord 正規化後的規則
type RuleRecord struct {
	ID         string     `json:"id"`
	Match      Match      `json:"match"`
	Action     Action     `json:"action"`
	Strictness Strictness `json:"strictness,omitempty"`
	Priority   int        `json:"priority"`
	Metadata   Metadata   `json:"metadata"`
}

// Heuristics 啟發式詞表，依 heuristic_type 彙整
type Heuristics struct {
	AddedSugarTerms []string            `json:"addedSugarTerms,omitempty"`
	Other           map[string][]string `json:"other,omitempty"`
}

// IsEmpty 是否沒有任何詞表
func (h Heuristics) IsEmpty() bool {
	return len(h.AddedSugarTerms) == 0 && len(h.Other) == 0
}

// SourceRef 單一規則來源的統計
type SourceRef struct {
	Ref     string         `json:"ref"`
	Details map[string]int `json:"details,omitempty"`
}

// ProvenanceMetadata 來源明細
type ProvenanceMetadata struct {
	Sources []SourceRef `json:"sources"`
	Reason  string      `json:"reason,omitempty"`
}

// Provenance 規則集來源
type Provenance struct {
	Source   string             `json:"source"`
	LoadedAt time.Time          `json:"loadedAt"`
	Metadata ProvenanceMetadata `json:"metadata"`
}

// Ruleset 合併後的規則集
type Ruleset struct {
	DietID      string       `json:"dietId"`
	Mode        Mode         `json:"mode"`
	Locale      string       `json:"locale,omitempty"`
	Rules       []RuleRecord `json:"rules"`
	Heuristics  Heuristics   `json:"heuristics"`
	ContentHash string       `json:"contentHash"`
	Provenance  Provenance   `json:"provenance"`
}

// RawCategoryItem ingredient_category_items 原始資料
type RawCategoryItem struct {
	ID       string   `json:"id"`
	Term     string   `json:"term"`
	TermNL   *string  `json:"term_nl"`
	Synonyms []string `json:"synonyms"`
	IsActive *bool    `json:"is_active"`
}

// RawCategory ingredient_categories 原始資料
type RawCategory struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	NameNL   string            `json:"name_nl"`
	IsActive *bool             `json:"is_active"`
	Items    []RawCategoryItem `json:"ingredient_category_items"`
}

// RawConstraintRow diet_category_constraints 原始資料（含巢狀類別）
type RawConstraintRow struct {
	ID             string       `json:"id"`
	DietTypeID     string       `json:"diet_type_id"`
	CategoryID     string       `json:"category_id"`
	ConstraintType string       `json:"constraint_type"`
	RuleAction     string       `json:"rule_action"`
	Strictness     string       `json:"strictness"`
	RulePriority   *int         `json:"rule_priority"`
	Priority       *int         `json:"priority"`
	IsActive       *bool        `json:"is_active"`
	Category       *RawCategory `json:"ingredient_categories"`
}

// RawRuleRow recipe_adaptation_rules 原始資料
type RawRuleRow struct {
	ID                      string   `json:"id"`
	DietTypeID              string   `json:"diet_type_id"`
	Term                    string   `json:"term"`
	Synonyms                []string `json:"synonyms"`
	RuleCode                string   `json:"rule_code"`
	RuleLabel               string   `json:"rule_label"`
	SubstitutionSuggestions []string `json:"substitution_suggestions"`
	Priority                *int     `json:"priority"`
	IsActive                *bool    `json:"is_active"`
}

// RawHeuristicRow recipe_adaptation_heuristics 原始資料
type RawHeuristicRow struct {
	ID            string   `json:"id"`
	DietTypeID    string   `json:"diet_type_id"`
	HeuristicType string   `json:"heuristic_type"`
	Terms         []string `json:"terms"`
	IsActive      *bool    `json:"is_active"`
}

// ConstraintsResult loadConstraints 回傳
type ConstraintsResult struct {
	Constraints []RawConstraintRow `json:"constraints"`
}

// RulesResult loadRecipeAdaptationRules 回傳
type RulesResult struct {
	Rules []RawRuleRow `json:"rules"`
}

// HeuristicsResult loadHeuristics 回傳
type HeuristicsResult struct {
	Heuristics []RawHeuristicRow `json:"heuristics"`
}

// Repo 規則來源介面，每個方法已在伺服器端依飲食類型篩選
type Repo interface {
	LoadConstraints(ctx context.Context, dietID string) (*ConstraintsResult, error)
	LoadRecipeAdaptationRules(ctx context.Context, dietID string) (*RulesResult, error)
	LoadHeuristics(ctx context.Context, dietID string) (*HeuristicsResult, error)
}
