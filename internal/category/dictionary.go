package category

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Keyword maps a word found in a transaction label to a canonical category
// name.
type Keyword struct {
	Word     string
	Category string
}

// Dictionary is an ordered keyword table; earlier entries win.
type Dictionary []Keyword

type dictionaryFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

// LoadDictionary reads a YAML keyword file of the form
//
//	categories:
//	  - name: Alimentation
//	    keywords: [carrefour, restaurant]
//
// preserving file order.
func LoadDictionary(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword file %s: %w", path, err)
	}

	var file dictionaryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse keyword file %s: %w", path, err)
	}

	var dict Dictionary
	for _, c := range file.Categories {
		for _, w := range c.Keywords {
			dict = append(dict, Keyword{Word: w, Category: c.Name})
		}
	}
	return dict, nil
}

// Names returns the distinct category names of the dictionary in order.
func (d Dictionary) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, k := range d {
		if !seen[k.Category] {
			seen[k.Category] = true
			names = append(names, k.Category)
		}
	}
	return names
}

func group(category string, words ...string) []Keyword {
	keywords := make([]Keyword, len(words))
	for i, w := range words {
		keywords[i] = Keyword{Word: w, Category: category}
	}
	return keywords
}

func concat(groups ...[]Keyword) Dictionary {
	var dict Dictionary
	for _, g := range groups {
		dict = append(dict, g...)
	}
	return dict
}

// DefaultDictionary is the built-in French vocabulary.
var DefaultDictionary = concat(
	group("Salaire", "salaire", "bulletin de paie", "virement employeur"),
	group("Factures", "seeg", "electricite", "facture", "canal+", "canal plus", "abonnement"),
	group("Telecom", "bundle", "forfait", "recharge", "unites", "airtel", "moov", "internet", "data"),
	group("Alimentation", "carrefour", "supermarche", "marche", "boulangerie", "restaurant", "nourriture", "snack", "epicerie", "mbolo", "cecado"),
	group("Transport", "taxi", "bus", "carburant", "essence", "gasoil", "station", "peage", "clando"),
	group("Logement", "loyer", "bail", "proprietaire"),
	group("Sante", "pharmacie", "hopital", "clinique", "medecin", "laboratoire"),
	group("Education", "ecole", "scolarite", "universite", "cours", "fournitures"),
	group("Loisirs", "cinema", "maquis", "sortie", "concert", "netflix"),
	group("Shopping", "boutique", "vetements", "chaussures"),
	group("Transfert", "transfert", "envoi"),
)

// DefaultTypes gives the direction of each default category. Names absent
// from the map are expenses.
var DefaultTypes = map[string]Direction{
	"Salaire":      Income,
	"Autre revenu": Income,
}

// Fallback names used when no suggestion is found.
const (
	FallbackExpense = "Autre"
	FallbackIncome  = "Autre revenu"
)
