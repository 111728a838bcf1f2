package scoring

import (
	"fmt"
	"math"
	"time"
)

const (
	maxScore = 100.0
	minScore = 0.0

	usagePenaltyPerUse = 5.0
	maxUsagePenalty    = 50.0
	recencyBonusPerDay = 2.0
	maxRecencyBonus    = 30.0

	// 缺少評分或營養分數時使用的中性值
	neutralScore = 50.0
)

// Weights 綜合分數的權重，三者總和必須為 1
type Weights struct {
	Rating    float64 `json:"rating"`
	Nutrition float64 `json:"nutrition"`
	Variety   float64 `json:"variety"`
}

// DefaultWeights 預設權重：評分 0.40、營養 0.35、多樣性 0.25
func DefaultWeights() Weights {
	return Weights{Rating: 0.40, Nutrition: 0.35, Variety: 0.25}
}

// Sum 權重總和
func (w Weights) Sum() float64 {
	return w.Rating + w.Nutrition + w.Variety
}

// Validate 檢查權重是否有效
func (w Weights) Validate() error {
	if w.Rating < 0 || w.Nutrition < 0 || w.Variety < 0 {
		return fmt.Errorf("weights must not be negative: %+v", w)
	}
	if math.Abs(w.Sum()-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// CalculateVarietyScore 依使用次數與最後使用時間計算多樣性分數 [0,100]
//
// 從 100 開始，每次使用扣 5 分（最多 50），距離上次使用每天加 2 分（最多 30），
// 從未使用則直接加 30。
func CalculateVarietyScore(usageCount int, lastUsedAt *time.Time, now time.Time) float64 {
	score := maxScore

	penalty := math.Min(float64(max(usageCount, 0))*usagePenaltyPerUse, maxUsagePenalty)
	score -= penalty

	if lastUsedAt == nil {
		score += maxRecencyBonus
	} else {
		days := math.Floor(now.Sub(*lastUsedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		score += math.Min(days*recencyBonusPerDay, maxRecencyBonus)
	}

	return clamp(score, minScore, maxScore)
}

// NormalizeRating 將 1-5 的評分轉為 0-100，缺少時回傳中性值
func NormalizeRating(rating *int) float64 {
	if rating == nil {
		return neutralScore
	}
	r := clamp(float64(*rating), 1, 5)
	return (r - 1) / 4 * 100
}

// CalculateCombinedScore 依權重計算綜合分數，四捨五入至小數點後兩位
func CalculateCombinedScore(rating *int, nutritionScore *float64, varietyScore float64, w Weights) float64 {
	nutrition := neutralScore
	if nutritionScore != nil {
		nutrition = clamp(*nutritionScore, minScore, maxScore)
	}
	variety := clamp(varietyScore, minScore, maxScore)

	combined := NormalizeRating(rating)*w.Rating +
		nutrition*w.Nutrition +
		variety*w.Variety

	return round2(combined)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
