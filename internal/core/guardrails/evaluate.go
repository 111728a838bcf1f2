package guardrails

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Finding 封鎖規則在某段文字上的命中
type Finding struct {
	RuleID      string     `json:"ruleId"`
	RuleLabel   string     `json:"ruleLabel,omitempty"`
	MatchedTerm string     `json:"matchedTerm"`
	Text        string     `json:"text"`
	Path        string     `json:"path"`
	Target      string     `json:"target"`
	Strictness  Strictness `json:"strictness,omitempty"`
	Priority    int        `json:"priority"`
	Suggestions []string   `json:"substitutionSuggestions,omitempty"`
}

// HeuristicHit 啟發式詞表的命中
type HeuristicHit struct {
	HeuristicType string `json:"heuristicType"`
	Term          string `json:"term"`
	Path          string `json:"path"`
}

// Evaluation 檢查結果
type Evaluation struct {
	OK            bool           `json:"ok"`
	ContentHash   string         `json:"contentHash"`
	Findings      []Finding      `json:"findings"`
	HeuristicHits []HeuristicHit `json:"heuristicHits"`
}

type targetGroup struct {
	name  string
	atoms []TextAtom
}

// Evaluate 以規則集檢查草稿文字
//
// 只有封鎖規則會產生 Finding；任何 hard 命中都會使 OK 為 false。
func Evaluate(rs *Ruleset, targets Targets) Evaluation {
	ev := Evaluation{OK: true, Findings: []Finding{}, HeuristicHits: []HeuristicHit{}}
	if rs == nil {
		return ev
	}
	ev.ContentHash = rs.ContentHash

	groups := []targetGroup{
		{TargetIngredient, targets.Ingredient},
		{TargetStep, targets.Step},
		{TargetMetadata, targets.Metadata},
	}

	for _, rule := range rs.Rules {
		if rule.Action != ActionBlock {
			continue
		}
		terms := append([]string{rule.Match.Term}, rule.Match.Synonyms...)
		for _, g := range groups {
			for _, atom := range g.atoms {
				term, ok := firstMatch(atom.Text, terms)
				if !ok {
					continue
				}
				ev.Findings = append(ev.Findings, Finding{
					RuleID:      rule.ID,
					RuleLabel:   rule.Metadata.RuleLabel,
					MatchedTerm: term,
					Text:        atom.Text,
					Path:        atom.Path,
					Target:      g.name,
					Strictness:  rule.Strictness,
					Priority:    rule.Priority,
					Suggestions: rule.Metadata.SubstitutionSuggestions,
				})
				if rule.Strictness != StrictnessSoft {
					ev.OK = false
				}
			}
		}
	}

	for _, g := range groups {
		for _, atom := range g.atoms {
			if term, ok := firstMatch(atom.Text, rs.Heuristics.AddedSugarTerms); ok {
				ev.HeuristicHits = append(ev.HeuristicHits, HeuristicHit{
					HeuristicType: heuristicAddedSugar,
					Term:          term,
					Path:          atom.Path,
				})
			}
		}
	}

	sort.SliceStable(ev.Findings, func(i, j int) bool {
		a, b := ev.Findings[i], ev.Findings[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Path < b.Path
	})
	return ev
}

// firstMatch 回傳第一個以完整字詞出現在文字中的詞
func firstMatch(text string, terms []string) (string, bool) {
	for _, t := range terms {
		if t != "" && containsWord(text, t) {
			return t, true
		}
	}
	return "", false
}

// containsWord 詞的前後不能緊鄰字母或數字
func containsWord(text, term string) bool {
	for offset := 0; offset <= len(text)-len(term); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
