package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DietType 飲食類型
type DietType struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null" json:"code"`
	Name      string    `json:"name"`
	IsActive  *bool     `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DietType) TableName() string { return "diet_types" }

// IngredientCategory 食材類別
type IngredientCategory struct {
	ID        string                   `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code      string                   `gorm:"index" json:"code"`
	NameNL    string                   `gorm:"column:name_nl" json:"name_nl"`
	IsActive  *bool                    `json:"is_active"`
	Items     []IngredientCategoryItem `gorm:"foreignKey:CategoryID" json:"ingredient_category_items"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func (IngredientCategory) TableName() string { return "ingredient_categories" }

// IngredientCategoryItem 類別中的單一詞
type IngredientCategoryItem struct {
	ID         string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CategoryID string                      `gorm:"index;not null;type:varchar(64)" json:"category_id"`
	Term       string                      `gorm:"not null" json:"term"`
	TermNL     *string                     `gorm:"column:term_nl" json:"term_nl"`
	Synonyms   datatypes.JSONSlice[string] `json:"synonyms"`
	IsActive   *bool                       `json:"is_active"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

func (IngredientCategoryItem) TableName() string { return "ingredient_category_items" }

// DietCategoryConstraint 飲食類型對食材類別的限制
type DietCategoryConstraint struct {
	ID             string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DietTypeID     string              `gorm:"index;not null;type:varchar(64)" json:"diet_type_id"`
	CategoryID     string              `gorm:"index;not null;type:varchar(64)" json:"category_id"`
	ConstraintType string              `json:"constraint_type"`
	RuleAction     string              `json:"rule_action"`
	Strictness     string              `json:"strictness"`
	RulePriority   *int                `json:"rule_priority"`
	Priority       *int                `json:"priority"`
	IsActive       *bool               `json:"is_active"`
	Category       *IngredientCategory `gorm:"foreignKey:CategoryID" json:"ingredient_categories"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (DietCategoryConstraint) TableName() string { return "diet_category_constraints" }

// RecipeAdaptationRule 詞彙規則
type RecipeAdaptationRule struct {
	ID                      string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DietTypeID              string                      `gorm:"index;not null;type:varchar(64)" json:"diet_type_id"`
	Term                    string                      `gorm:"not null" json:"term"`
	Synonyms                datatypes.JSONSlice[string] `json:"synonyms"`
	RuleCode                string                      `json:"rule_code"`
	RuleLabel               string                      `json:"rule_label"`
	SubstitutionSuggestions datatypes.JSONSlice[string] `json:"substitution_suggestions"`
	Priority                *int                        `json:"priority"`
	IsActive                *bool                       `json:"is_active"`
	CreatedAt               time.Time                   `json:"created_at"`
	UpdatedAt               time.Time                   `json:"updated_at"`
}

func (RecipeAdaptationRule) TableName() string { return "recipe_adaptation_rules" }

// RecipeAdaptationHeuristic 啟發式詞表
type RecipeAdaptationHeuristic struct {
	ID            string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DietTypeID    string                      `gorm:"index;not null;type:varchar(64)" json:"diet_type_id"`
	HeuristicType string                      `gorm:"not null" json:"heuristic_type"`
	Terms         datatypes.JSONSlice[string] `json:"terms"`
	IsActive      *bool                       `json:"is_active"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (RecipeAdaptationHeuristic) TableName() string { return "recipe_adaptation_heuristics" }

// MealHistory 使用者餐點歷史
type MealHistory struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string     `gorm:"index:idx_meal_history_user_meal,unique;not null;type:varchar(64)" json:"user_id"`
	MealID         string     `gorm:"index:idx_meal_history_user_meal,unique;not null;type:varchar(64)" json:"meal_id"`
	MealName       string     `json:"meal_name"`
	UserRating     *int       `json:"user_rating"`
	NutritionScore *float64   `json:"nutrition_score"`
	VarietyScore   float64    `gorm:"not null;default:0" json:"variety_score"`
	CombinedScore  float64    `gorm:"not null;default:0" json:"combined_score"`
	UsageCount     int        `gorm:"not null;default:0" json:"usage_count"`
	LastUsedAt     *time.Time `json:"last_used_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (MealHistory) TableName() string { return "meal_history" }

// BeforeCreate 沒有 ID 時自動產生
func (m *MealHistory) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Models 需要遷移的所有資料表
func Models() []interface{} {
	return []interface{}{
		&DietType{},
		&IngredientCategory{},
		&IngredientCategoryItem{},
		&DietCategoryConstraint{},
		&RecipeAdaptationRule{},
		&RecipeAdaptationHeuristic{},
		&MealHistory{},
	}
}
