package preference

import (
	"strings"
)

// minWordLength 關鍵字比對時忽略長度不超過此值的字詞
const minWordLength = 2

// Item 被比對的餐點或食物
type Item struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

// KeywordGroup 條件關鍵字組：偏好提到 When 任一字時，項目必須含有 Require 任一字
type KeywordGroup struct {
	When    []string `json:"when"`
	Require []string `json:"require"`
}

// CategoryRule 類別規則表的一列
type CategoryRule struct {
	Category              string         `json:"category"`
	TriggerKeywords       []string       `json:"trigger_keywords"`
	NameKeywords          []string       `json:"name_keywords"`
	RequiredKeywordGroups []KeywordGroup `json:"required_keyword_groups,omitempty"`
}

// DefaultRules 預設類別規則：奶昔 / 果昔
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			Category:        "shake",
			TriggerKeywords: []string{"shake", "smoothie"},
			NameKeywords:    []string{"shake", "smoothie"},
			RequiredKeywordGroups: []KeywordGroup{
				{
					When:    []string{"eiwit", "protein", "proteïne"},
					Require: []string{"eiwit", "protein", "proteïne", "whey", "kwark", "skyr", "griekse yoghurt", "greek yogurt"},
				},
				{
					When:    []string{"groen", "green"},
					Require: []string{"spinazie", "spinach", "boerenkool", "kale", "avocado", "komkommer", "cucumber", "selderij", "celery", "matcha", "groen", "green"},
				},
			},
		},
	}
}

// Matcher 偏好比對器
type Matcher struct {
	rules []CategoryRule
}

// NewMatcher 以類別規則表創建比對器
func NewMatcher(rules []CategoryRule) *Matcher {
	normalized := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		nr := CategoryRule{
			Category:        r.Category,
			TriggerKeywords: lowerAll(r.TriggerKeywords),
			NameKeywords:    lowerAll(r.NameKeywords),
		}
		for _, g := range r.RequiredKeywordGroups {
			nr.RequiredKeywordGroups = append(nr.RequiredKeywordGroups, KeywordGroup{
				When:    lowerAll(g.When),
				Require: lowerAll(g.Require),
			})
		}
		normalized = append(normalized, nr)
	}
	return &Matcher{rules: normalized}
}

// NewDefaultMatcher 使用預設規則表
func NewDefaultMatcher() *Matcher {
	return NewMatcher(DefaultRules())
}

// Match 判斷項目是否符合任一偏好；沒有偏好時一律符合
func (m *Matcher) Match(item Item, preferences []string) bool {
	prefs := make([]string, 0, len(preferences))
	for _, p := range preferences {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefs = append(prefs, p)
		}
	}
	if len(prefs) == 0 {
		return true
	}

	name := strings.ToLower(item.Name)
	haystack := name
	if len(item.Tags) > 0 {
		haystack += " " + strings.ToLower(strings.Join(item.Tags, " "))
	}

	for _, pref := range prefs {
		if strings.Contains(name, pref) {
			return true
		}
		if allWordsPresent(pref, haystack) {
			return true
		}
		for _, rule := range m.rules {
			if rule.matches(pref, haystack) {
				return true
			}
		}
	}
	return false
}

// Filter 回傳符合偏好的項目，保持原順序
func (m *Matcher) Filter(items []Item, preferences []string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if m.Match(it, preferences) {
			out = append(out, it)
		}
	}
	return out
}

// matches 類別規則的統一判斷
func (r CategoryRule) matches(pref, haystack string) bool {
	if !containsAny(pref, r.TriggerKeywords) || !containsAny(haystack, r.NameKeywords) {
		return false
	}
	for _, g := range r.RequiredKeywordGroups {
		if containsAny(pref, g.When) && !containsAny(haystack, g.Require) {
			return false
		}
	}
	return true
}

// allWordsPresent 偏好中所有長度大於 2 的字詞都必須出現
func allWordsPresent(pref, haystack string) bool {
	found := 0
	for _, w := range strings.Fields(pref) {
		if len([]rune(w)) <= minWordLength {
			continue
		}
		if !strings.Contains(haystack, w) {
			return false
		}
		found++
	}
	return found > 0
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
