package momo

import (
	"regexp"
	"strings"
)

// Carrier notifications are French and inconsistent about accents, so the
// patterns accept both "envoye" and "envoyé" and match case-insensitively.
var (
	transferOutRe = regexp.MustCompile(`(?i)\b(?:envoy[eé]e?|transf[eé]r[eé]e?)\s+(` + amountPattern + `)`)
	transferInRe  = regexp.MustCompile(`(?i)\bre[çc]ue?\s+(?:un\s+transfert\s+de\s+)?(` + amountPattern + `)`)
	bundleRe      = regexp.MustCompile(`(?is)\bpaiement\s+de\s+(` + amountPattern + `).*?\b(?:bundle|forfait|pass)\b`)
	// A product stated only by its cost must read as a purchase, so a bill
	// that mentions the subscribed forfait is left to billRe.
	bundleCostRe = regexp.MustCompile(`(?is)\b(?:achat|achet[eé]e?|souscription|souscrit)[^.]*?\b(?:bundle|forfait|pass)\b.*?\bco[uû]t\s*:\s*(` + amountPattern + `)`)
	billRe       = regexp.MustCompile(`(?i)\bvous\s+avez\s+pay[eé]\s+(` + amountPattern + `)`)

	recipientRe   = regexp.MustCompile(`(?i)\b(?:envoy[eé]e?|transf[eé]r[eé]e?)\s+` + amountPattern + `\s+(?:au|à|a)\s+([^.,\n]+)`)
	senderRe      = regexp.MustCompile(`(?i)\bre[çc]ue?\s+(?:un\s+transfert\s+de\s+)?` + amountPattern + `\s+(?:du|de\s+la\s+part\s+de|de)\s+([^.,\n]+)`)
	beneficiaryRe = regexp.MustCompile(`(?i)\bpay[eé]\s+` + amountPattern + `\s+(?:au|à|a)\s+([^.,\n]+?)(?:\s+pour\s|[.,\n]|$)`)

	feesRe    = regexp.MustCompile(`(?i)\bfrais\s*:?\s*(` + amountPattern + `)`)
	costRe    = regexp.MustCompile(`(?i)\bco[uû]t\s*:\s*(` + amountPattern + `)`)
	balanceRe = regexp.MustCompile(`(?i)\b(?:nouveau\s+)?solde(?:\s+(?:actuel|disponible))?\s*(?:est\s+de|est|:)?\s*(` + amountPattern + `)`)

	// The id ends at the first character that is not a letter or a digit,
	// which keeps trailing punctuation and promotional text out of it.
	tidRe = regexp.MustCompile(`(?i)\bTID\s*:?\s*([A-Za-z0-9]+)`)
)

type recognizer struct {
	re    *regexp.Regexp
	build func(body string, amount int64) Message
}

// recognizers are evaluated in order and the first match wins.
var recognizers = []recognizer{
	{transferOutRe, func(body string, amount int64) Message {
		return TransferOut{
			Amount:    amount,
			Fees:      amountOrZero(feesRe, body),
			Balance:   optionalAmount(balanceRe, body),
			Recipient: optionalText(recipientRe, body),
			TID:       transactionID(body),
		}
	}},
	{transferInRe, func(body string, amount int64) Message {
		return TransferIn{
			Amount:  amount,
			Balance: optionalAmount(balanceRe, body),
			Sender:  optionalText(senderRe, body),
			TID:     transactionID(body),
		}
	}},
	{bundleRe, func(body string, amount int64) Message {
		return Bundle{
			Amount:  amount,
			Fees:    amountOrZero(costRe, body),
			Balance: optionalAmount(balanceRe, body),
			TID:     transactionID(body),
		}
	}},
	{bundleCostRe, func(body string, amount int64) Message {
		return Bundle{
			Amount:  amount,
			Balance: optionalAmount(balanceRe, body),
			TID:     transactionID(body),
		}
	}},
	{billRe, func(body string, amount int64) Message {
		return BillPayment{
			Amount:      amount,
			Fees:        billFees(body),
			Balance:     optionalAmount(balanceRe, body),
			Beneficiary: optionalText(beneficiaryRe, body),
			TID:         transactionID(body),
		}
	}},
}

// Parse classifies a single SMS body. It returns nil when the text is not a
// recognized transaction notification, including when the main amount
// cannot be read.
func Parse(body string) Message {
	for _, r := range recognizers {
		matches := r.re.FindStringSubmatch(body)
		if matches == nil {
			continue
		}
		amount, ok := NormalizeAmount(matches[1])
		if !ok || amount == 0 {
			continue
		}
		return r.build(body, amount)
	}
	return nil
}

func optionalAmount(re *regexp.Regexp, body string) *int64 {
	matches := re.FindStringSubmatch(body)
	if matches == nil {
		return nil
	}
	amount, ok := NormalizeAmount(matches[1])
	if !ok {
		return nil
	}
	return &amount
}

func amountOrZero(re *regexp.Regexp, body string) int64 {
	if amount := optionalAmount(re, body); amount != nil {
		return *amount
	}
	return 0
}

// billFees reads "Frais", falling back to the "Cout:" some billers print.
func billFees(body string) int64 {
	if fees := optionalAmount(feesRe, body); fees != nil {
		return *fees
	}
	return amountOrZero(costRe, body)
}

func optionalText(re *regexp.Regexp, body string) *string {
	matches := re.FindStringSubmatch(body)
	if matches == nil {
		return nil
	}
	// Normalize double spaces
	text := strings.Join(strings.Fields(matches[1]), " ")
	if text == "" {
		return nil
	}
	return &text
}

func transactionID(body string) *string {
	matches := tidRe.FindStringSubmatch(body)
	if matches == nil {
		return nil
	}
	return &matches[1]
}
