package guardrails

// 資料庫沒有任何可用規則時使用的內建規則集，確保不會在零規則下運作。

const fallbackRef = "fallback:builtin"

func fallbackRules() []RuleRecord {
	return []RuleRecord{
		{
			ID:         "fallback:added_sugar",
			Match:      Match{Term: "sugar", Synonyms: []string{"glucosestroop", "rietsuiker", "siroop", "suiker", "syrup"}},
			Action:     ActionBlock,
			Strictness: StrictnessSoft,
			Priority:   60,
			Metadata:   Metadata{RuleLabel: "Toegevoegde suikers", SubstitutionSuggestions: []string{"dadels", "banaan"}},
		},
		{
			ID:         "fallback:alcohol",
			Match:      Match{Term: "alcohol", Synonyms: []string{"beer", "bier", "rum", "wijn", "wine"}},
			Action:     ActionBlock,
			Strictness: StrictnessHard,
			Priority:   90,
			Metadata:   Metadata{RuleLabel: "Alcohol"},
		},
		{
			ID:         "fallback:processed_meat",
			Match:      Match{Term: "processed meat", Synonyms: []string{"bacon", "ham", "salami", "spek", "worst"}},
			Action:     ActionBlock,
			Strictness: StrictnessSoft,
			Priority:   40,
			Metadata:   Metadata{RuleLabel: "Bewerkt vlees"},
		},
	}
}

func fallbackHeuristics() Heuristics {
	return Heuristics{
		AddedSugarTerms: []string{"agavesiroop", "ahornsiroop", "honey", "honing", "maple syrup", "siroop", "sugar", "suiker", "syrup"},
	}
}
