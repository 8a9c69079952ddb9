package category

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidates = []Category{
	{ID: 1, Name: "Alimentation", Type: Expense},
	{ID: 2, Name: "Factures", Type: Expense},
	{ID: 3, Name: "Courses du mois", Type: Expense},
	{ID: 4, Name: "Salaire", Type: Income},
	{ID: 5, Name: "Telecom", Type: Expense},
}

func TestHabitMemoryOutranksKeywords(t *testing.T) {
	engine := NewEngine(nil)
	history := []Past{{Label: "Carrefour", CategoryID: 3}}

	id, ok := engine.Suggest("  carrefour ", candidates, history, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(3), id, "history must win over the keyword table")

	id, ok = engine.Suggest("Carrefour", candidates, nil, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestHabitMemoryIgnoresRemovedOrWrongDirectionCategories(t *testing.T) {
	engine := NewEngine(nil)

	id, ok := engine.Suggest("Carrefour", candidates, []Past{{Label: "carrefour", CategoryID: 99}}, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(1), id, "a deleted category falls through to keywords")

	_, ok = engine.Suggest("Carrefour", candidates, []Past{{Label: "carrefour", CategoryID: 3}}, Income)
	assert.False(t, ok)
}

func TestHabitMemoryUsesNewestMatch(t *testing.T) {
	engine := NewEngine(nil)
	history := []Past{
		{Label: "Jean Dupont", CategoryID: 2},
		{Label: "jean dupont", CategoryID: 1},
	}
	id, ok := engine.Suggest("JEAN DUPONT", candidates, history, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(2), id)
}

func TestKeywordsAreAccentInsensitive(t *testing.T) {
	engine := NewEngine(nil)

	id, ok := engine.Suggest("Facture Électricité octobre", candidates, nil, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(2), id)

	id, ok = engine.Suggest("SEEG", candidates, nil, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(2), id)

	id, ok = engine.Suggest("Achat bundle", candidates, nil, "")
	require.True(t, ok)
	assert.Equal(t, uint(5), id)
}

func TestSuggestNone(t *testing.T) {
	engine := NewEngine(nil)

	_, ok := engine.Suggest("077123456 Jean", candidates, nil, Expense)
	assert.False(t, ok)
	_, ok = engine.Suggest("", candidates, nil, Expense)
	assert.False(t, ok)
	_, ok = engine.Suggest("salaire octobre", candidates, nil, Expense)
	assert.False(t, ok, "Salaire is an income category")

	id, ok := engine.Suggest("salaire octobre", candidates, nil, Income)
	require.True(t, ok)
	assert.Equal(t, uint(4), id)
}

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	content := `categories:
  - name: Courses du mois
    keywords: [carrefour, mbolo]
  - name: Factures
    keywords: [seeg]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	dict, err := LoadDictionary(path)
	require.NoError(t, err)
	assert.Equal(t, Dictionary{
		{Word: "carrefour", Category: "Courses du mois"},
		{Word: "mbolo", Category: "Courses du mois"},
		{Word: "seeg", Category: "Factures"},
	}, dict)
	assert.Equal(t, []string{"Courses du mois", "Factures"}, dict.Names())

	id, ok := NewEngine(dict).Suggest("Carrefour Glass", candidates, nil, Expense)
	require.True(t, ok)
	assert.Equal(t, uint(3), id)

	_, err = LoadDictionary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	c, ok := ByName(candidates, "factures")
	require.True(t, ok)
	assert.Equal(t, uint(2), c.ID)

	_, ok = ByName(candidates, "Loisirs")
	assert.False(t, ok)
}
