package guardrails

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type loadOptions struct {
	locale string
	now    time.Time
}

// LoadOption 載入選項
type LoadOption func(*loadOptions)

// WithLocale 指定語系，影響類別項目的主要詞
func WithLocale(locale string) LoadOption {
	return func(o *loadOptions) { o.locale = locale }
}

// WithNow 固定載入時間
func WithNow(now time.Time) LoadOption {
	return func(o *loadOptions) { o.now = now }
}

// LoadRuleset 從三個來源並行載入規則並合併成規則集
//
// 任一來源失敗時整體失敗並原封不動回傳該錯誤；只有在所有來源成功但過濾後沒有任何規則時，
// 才改用內建規則集。
func LoadRuleset(ctx context.Context, repo Repo, dietID string, mode Mode, opts ...LoadOption) (*Ruleset, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now.IsZero() {
		o.now = time.Now().UTC()
	}
	if mode == "" {
		mode = ModeRecipeAdaptation
	}

	var (
		constraints *ConstraintsResult
		termRules   *RulesResult
		heuristics  *HeuristicsResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := repo.LoadConstraints(gctx, dietID)
		if err != nil {
			return err
		}
		constraints = res
		return nil
	})
	g.Go(func() error {
		res, err := repo.LoadRecipeAdaptationRules(gctx, dietID)
		if err != nil {
			return err
		}
		termRules = res
		return nil
	})
	g.Go(func() error {
		res, err := repo.LoadHeuristics(gctx, dietID)
		if err != nil {
			return err
		}
		heuristics = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		constraintRows []RawConstraintRow
		ruleRows       []RawRuleRow
		heuristicRows  []RawHeuristicRow
	)
	if constraints != nil {
		constraintRows = constraints.Constraints
	}
	if termRules != nil {
		ruleRows = termRules.Rules
	}
	if heuristics != nil {
		heuristicRows = heuristics.Heuristics
	}

	fromConstraints := AdaptConstraints(constraintRows, o.locale)
	fromRules := AdaptRules(ruleRows)
	heur, heurCounts := AdaptHeuristics(heuristicRows)

	rs := &Ruleset{
		DietID: dietID,
		Mode:   mode,
		Locale: o.locale,
	}

	rules := mergeRules(fromConstraints, fromRules)
	if len(rules) == 0 {
		rs.Rules = fallbackRules()
		rs.Heuristics = fallbackHeuristics()
		rs.Provenance = Provenance{
			Source:   SourceFallback,
			LoadedAt: o.now,
			Metadata: ProvenanceMetadata{
				Sources: []SourceRef{{Ref: fallbackRef}},
				Reason:  "no_active_rules",
			},
		}
	} else {
		rs.Rules = rules
		rs.Heuristics = heur
		rs.Provenance = Provenance{
			Source:   SourceDatabase,
			LoadedAt: o.now,
			Metadata: ProvenanceMetadata{
				Sources: []SourceRef{
					{Ref: "db:" + TableConstraints, Details: map[string]int{"rows": len(constraintRows), "rules": len(fromConstraints)}},
					{Ref: "db:" + TableRules, Details: map[string]int{"rows": len(ruleRows), "rules": len(fromRules)}},
					{Ref: "db:" + TableHeuristics, Details: map[string]int{"rows": len(heuristicRows), "types": len(heurCounts)}},
				},
			},
		}
	}
	sortRules(rs.Rules)

	hash, err := ContentHash(rs.Rules, rs.Heuristics)
	if err != nil {
		return nil, err
	}
	rs.ContentHash = hash
	return rs, nil
}

// mergeRules 依 ID 合併，重複 ID 保留優先權較高者，相同時保留先出現者
func mergeRules(sets ...[]RuleRecord) []RuleRecord {
	index := map[string]int{}
	var out []RuleRecord
	for _, set := range sets {
		for _, r := range set {
			if i, ok := index[r.ID]; ok {
				if r.Priority > out[i].Priority {
					out[i] = r
				}
				continue
			}
			index[r.ID] = len(out)
			out = append(out, r)
		}
	}
	return out
}

func sortRules(rules []RuleRecord) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}

// ContentHash 對排序後的規則與詞表計算 SHA-256
func ContentHash(rules []RuleRecord, heuristics Heuristics) (string, error) {
	payload := struct {
		Rules      []RuleRecord `json:"rules"`
		Heuristics Heuristics   `json:"heuristics"`
	}{Rules: rules, Heuristics: heuristics}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ruleset for hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
