package category

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Direction string

const (
	Income  Direction = "Income"
	Expense Direction = "Expense"
)

// Category is a candidate for suggestion.
type Category struct {
	ID   uint
	Name string
	Type Direction
}

// Past is a previously categorized transaction.
type Past struct {
	Label      string
	CategoryID uint
}

type Engine struct {
	dict Dictionary
}

func NewEngine(dict Dictionary) *Engine {
	if dict == nil {
		dict = DefaultDictionary
	}
	return &Engine{dict: dict}
}

// Suggest picks a category for label. The user's own history is consulted
// first: a past transaction with the same label wins over any keyword. Only
// then is the keyword dictionary used. history should be newest first.
// An empty direction accepts every candidate.
func (e *Engine) Suggest(label string, candidates []Category, history []Past, dir Direction) (uint, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}

	allowed := make(map[uint]Category, len(candidates))
	var ordered []Category
	for _, c := range candidates {
		if dir != "" && c.Type != dir {
			continue
		}
		allowed[c.ID] = c
		ordered = append(ordered, c)
	}
	if len(ordered) == 0 {
		return 0, false
	}

	for _, p := range history {
		if !strings.EqualFold(strings.TrimSpace(p.Label), label) {
			continue
		}
		if _, ok := allowed[p.CategoryID]; ok {
			return p.CategoryID, true
		}
	}

	folded := fold(label)
	for _, k := range e.dict {
		if !strings.Contains(folded, fold(k.Word)) {
			continue
		}
		for _, c := range ordered {
			if fold(c.Name) == fold(k.Category) {
				return c.ID, true
			}
		}
	}
	return 0, false
}

// ByName returns the first candidate named name, ignoring case and accents.
func ByName(candidates []Category, name string) (Category, bool) {
	want := fold(name)
	for _, c := range candidates {
		if fold(c.Name) == want {
			return c, true
		}
	}
	return Category{}, false
}

// fold lower-cases s and strips diacritics so "Électricité" matches
// "electricite".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
