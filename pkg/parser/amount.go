package parser

import (
	"regexp"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	candidatePattern = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)
	// clockPattern also covers HH:MM:SS, which always contains an HH:MM.
	clockPattern      = regexp.MustCompile(`\d{1,2}:\d{2}`)
	wholeClockPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// Plausibility bounds for amounts found by the candidate scan.
var (
	minAmount        = decimal.RequireFromString("0.1")
	maxAmount        = decimal.NewFromInt(100000)
	maxTypicalAmount = decimal.NewFromInt(10000)
)

// contextRadius is how many runes on each side of a candidate are checked for a clock time.
const contextRadius = 3

func extractLabeledAmount(match []string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(match[1])
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// extractAmount prefers explicitly labeled amounts and falls back to scanning
// every number in the text.
func (c *compiled) extractAmount(text string) *decimal.Decimal {
	if d, ok := firstMatch(c.amounts, text); ok {
		return &d
	}
	return selectBestAmount(scanCandidates(text))
}

// scanCandidates returns every number in text that survives the plausibility filters.
func scanCandidates(text string) []decimal.Decimal {
	locs := candidatePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	runes := []rune(text)
	wholeIsClock := wholeClockPattern.MatchString(text)

	var (
		candidates         []decimal.Decimal
		prevByte, prevRune int
	)
	for _, loc := range locs {
		start := prevRune + utf8.RuneCountInString(text[prevByte:loc[0]])
		end := start + utf8.RuneCountInString(text[loc[0]:loc[1]])
		prevByte, prevRune = loc[1], end

		if wholeIsClock || clockPattern.MatchString(contextWindow(runes, start, end)) {
			continue
		}
		if d, ok := plausibleAmount(text[loc[0]:loc[1]]); ok {
			candidates = append(candidates, d)
		}
	}
	return candidates
}

func contextWindow(runes []rune, start, end int) string {
	from := max(start-contextRadius, 0)
	to := min(end+contextRadius, len(runes))
	return string(runes[from:to])
}

// plausibleAmount rejects numbers that read as years, compressed month-day
// dates, noise or implausibly large values. The year and date checks apply to
// integral values, so "1500.00" is treated like "1500".
func plausibleAmount(literal string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Decimal{}, false
	}

	if d.IsInteger() {
		n := d.IntPart()
		if n >= 1000 && n <= 9999 {
			return decimal.Decimal{}, false
		}
		if n >= 100 && n <= 1231 {
			month, day := n/100, n%100
			if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return decimal.Decimal{}, false
			}
		}
	}

	if d.LessThan(minAmount) || d.GreaterThan(maxAmount) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// selectBestAmount picks the single candidate, else the largest typical
// amount, else the smallest positive one.
func selectBestAmount(candidates []decimal.Decimal) *decimal.Decimal {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &candidates[0]
	}

	var typical []decimal.Decimal
	for _, c := range candidates {
		if c.GreaterThanOrEqual(minAmount) && c.LessThanOrEqual(maxTypicalAmount) {
			typical = append(typical, c)
		}
	}
	if len(typical) > 0 {
		best := decimal.Max(typical[0], typical[1:]...)
		return &best
	}

	var smallest *decimal.Decimal
	for i := range candidates {
		if !candidates[i].IsPositive() {
			continue
		}
		if smallest == nil || candidates[i].LessThan(*smallest) {
			smallest = &candidates[i]
		}
	}
	return smallest
}
