package guardrails

import (
	"sort"
	"strings"
)

const (
	defaultPriority = 50

	constraintForbidden = "forbidden"
	constraintRequired  = "required"

	heuristicAddedSugar = "added_sugar"

	localeDutch = "nl"
)

// isActive is_active 為 NULL 時視為啟用，只有明確的 false 代表停用
func isActive(flag *bool) bool {
	return flag == nil || *flag
}

// ruleID 依來源資料表與穩定鍵組成規則 ID
func ruleID(table string, keys ...string) string {
	return "db:" + table + ":" + strings.Join(keys, ":")
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeTerms 小寫、去空白、去重並排序；排除 exclude
func normalizeTerms(in []string, exclude string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normalizeTerm(s)
		if s == "" || s == exclude || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AdaptConstraints 將類別限制展開為每個啟用項目一條規則
func AdaptConstraints(rows []RawConstraintRow, locale string) []RuleRecord {
	var rules []RuleRecord
	for _, row := range rows {
		if !isActive(row.IsActive) || row.ID == "" {
			continue
		}
		cat := row.Category
		if cat == nil || !isActive(cat.IsActive) {
			continue
		}

		action, nonEnforcing, ok := constraintAction(row)
		if !ok {
			continue
		}
		strictness := Strictness(normalizeTerm(row.Strictness))
		if strictness != StrictnessSoft {
			strictness = StrictnessHard
		}
		priority := defaultPriority
		if row.RulePriority != nil {
			priority = *row.RulePriority
		} else if row.Priority != nil {
			priority = *row.Priority
		}

		for _, item := range cat.Items {
			if !isActive(item.IsActive) || item.ID == "" {
				continue
			}
			term, synonyms := localizedTerm(item, locale)
			if term == "" {
				continue
			}
			rules = append(rules, RuleRecord{
				ID:         ruleID(TableConstraints, row.ID, item.ID),
				Match:      Match{Term: term, Synonyms: synonyms},
				Action:     action,
				Strictness: strictness,
				Priority:   priority,
				Metadata: Metadata{
					IsNonEnforcingAllow: nonEnforcing,
					RuleLabel:           cat.NameNL,
					CategoryCode:        cat.Code,
					ConstraintType:      row.ConstraintType,
				},
			})
		}
	}
	return rules
}

// constraintAction 優先使用 rule_action，否則由 constraint_type 推導
func constraintAction(row RawConstraintRow) (Action, bool, bool) {
	switch Action(normalizeTerm(row.RuleAction)) {
	case ActionBlock:
		return ActionBlock, false, true
	case ActionAllow:
		return ActionAllow, normalizeTerm(row.ConstraintType) == constraintRequired, true
	}
	switch normalizeTerm(row.ConstraintType) {
	case constraintForbidden:
		return ActionBlock, false, true
	case constraintRequired:
		return ActionAllow, true, true
	}
	return "", false, false
}

// localizedTerm 依語系選擇主要詞，另一個拼法併入同義詞
func localizedTerm(item RawCategoryItem, locale string) (string, []string) {
	term := normalizeTerm(item.Term)
	termNL := ""
	if item.TermNL != nil {
		termNL = normalizeTerm(*item.TermNL)
	}

	primary, secondary := term, termNL
	if strings.HasPrefix(strings.ToLower(locale), localeDutch) && termNL != "" {
		primary, secondary = termNL, term
	}
	if primary == "" {
		primary, secondary = secondary, ""
	}

	synonyms := item.Synonyms
	if secondary != "" {
		synonyms = append(append([]string(nil), synonyms...), secondary)
	}
	return primary, normalizeTerms(synonyms, primary)
}

// AdaptRules 將詞彙規則一對一轉為封鎖規則
func AdaptRules(rows []RawRuleRow) []RuleRecord {
	rules := make([]RuleRecord, 0, len(rows))
	for _, row := range rows {
		if !isActive(row.IsActive) || row.ID == "" {
			continue
		}
		term := normalizeTerm(row.Term)
		if term == "" {
			continue
		}
		priority := defaultPriority
		if row.Priority != nil {
			priority = *row.Priority
		}
		rules = append(rules, RuleRecord{
			ID:       ruleID(TableRules, row.ID),
			Match:    Match{Term: term, Synonyms: normalizeTerms(row.Synonyms, term)},
			Action:   ActionBlock,
			Priority: priority,
			Metadata: Metadata{
				RuleLabel:               strings.TrimSpace(row.RuleLabel),
				RuleCode:                strings.TrimSpace(row.RuleCode),
				SubstitutionSuggestions: trimAll(row.SubstitutionSuggestions),
			},
		})
	}
	return rules
}

// AdaptHeuristics 依 heuristic_type 彙整詞表
func AdaptHeuristics(rows []RawHeuristicRow) (Heuristics, map[string]int) {
	byType := map[string][]string{}
	for _, row := range rows {
		if !isActive(row.IsActive) {
			continue
		}
		typ := normalizeTerm(row.HeuristicType)
		if typ == "" {
			continue
		}
		byType[typ] = append(byType[typ], row.Terms...)
	}

	var h Heuristics
	counts := map[string]int{}
	for typ, terms := range byType {
		normalized := normalizeTerms(terms, "")
		if len(normalized) == 0 {
			continue
		}
		counts[typ] = len(normalized)
		if typ == heuristicAddedSugar {
			h.AddedSugarTerms = normalized
			continue
		}
		if h.Other == nil {
			h.Other = map[string][]string{}
		}
		h.Other[typ] = normalized
	}
	return h, counts
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
