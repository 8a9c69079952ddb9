package momo

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern matches a monetary quantity followed by its currency marker.
// Digits may be grouped by three with a dot, comma, space, NBSP or narrow
// NBSP; "." or "," followed by digits that do not form such a group is a
// fraction.
const amountPattern = `(?:\d{1,3}(?:[.,\x{00A0}\x{202F} ]\d{3})+|\d+)(?:[.,]\d+)?\s*(?:FCFA|XAF|F)\b`

// amountRe may not start inside a number, so "1.250.000F" is never read
// from its middle.
var amountRe = regexp.MustCompile(`(?i)(?:^|[^\d.,\x{00A0}\x{202F}])(\d{1,3}(?:[.,\x{00A0}\x{202F} ]\d{3})+|\d+)(?:[.,](\d+))?\s*(?:FCFA|XAF|F)\b`)

var separators = strings.NewReplacer(".", "", ",", "", " ", "", "\u00a0", "", "\u202f", "")

// NormalizeAmount extracts the first amount in s that is followed by a
// currency marker and rounds it half-up to a whole unit. It reports false
// when s holds no such amount.
func NormalizeAmount(s string) (int64, bool) {
	matches := amountRe.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}

	number := separators.Replace(matches[1])
	if matches[2] != "" {
		number += "." + matches[2]
	}
	d, err := decimal.NewFromString(number)
	if err != nil {
		return 0, false
	}
	// Round is half away from zero, which is half-up for non-negative values.
	return d.Round(0).IntPart(), true
}
