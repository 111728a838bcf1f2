package guardrails

import (
	"fmt"
	"strings"
)

// DraftIngredient 草稿中的食材
type DraftIngredient struct {
	Name string  `json:"name"`
	Note *string `json:"note,omitempty"`
}

// DraftStep 草稿中的步驟
type DraftStep struct {
	Text string `json:"text"`
}

// Draft 待檢查的食譜草稿
type Draft struct {
	Title       string            `json:"title"`
	Ingredients []DraftIngredient `json:"ingredients"`
	Steps       []DraftStep       `json:"steps"`
}

// TextAtom 可獨立定位的一段文字
type TextAtom struct {
	Text   string `json:"text"`
	Path   string `json:"path"`
	Locale string `json:"locale,omitempty"`
}

// Targets 依目標類別分組的文字
type Targets struct {
	Ingredient []TextAtom `json:"ingredient"`
	Step       []TextAtom `json:"step"`
	Metadata   []TextAtom `json:"metadata"`
}

// Target 類別名稱
const (
	TargetIngredient = "ingredient"
	TargetStep       = "step"
	TargetMetadata   = "metadata"
)

// MapDraftToTargets 將草稿拆成帶穩定路徑的文字單元
func MapDraftToTargets(draft Draft, locale string) Targets {
	t := Targets{
		Ingredient: []TextAtom{},
		Step:       []TextAtom{},
		Metadata:   []TextAtom{},
	}

	for i, ing := range draft.Ingredients {
		if atom, ok := newAtom(ing.Name, fmt.Sprintf("ingredients[%d].name", i), locale); ok {
			t.Ingredient = append(t.Ingredient, atom)
		}
		if ing.Note != nil {
			if atom, ok := newAtom(*ing.Note, fmt.Sprintf("ingredients[%d].note", i), locale); ok {
				t.Ingredient = append(t.Ingredient, atom)
			}
		}
	}

	for i, step := range draft.Steps {
		if atom, ok := newAtom(step.Text, fmt.Sprintf("steps[%d].text", i), locale); ok {
			t.Step = append(t.Step, atom)
		}
	}

	if atom, ok := newAtom(draft.Title, "metadata.title", locale); ok {
		t.Metadata = append(t.Metadata, atom)
	}

	return t
}

func newAtom(text, path, locale string) (TextAtom, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return TextAtom{}, false
	}
	return TextAtom{Text: text, Path: path, Locale: locale}, true
}
