package parser

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRules is returned when a rule set cannot be compiled.
var ErrInvalidRules = errors.New("invalid rules")

// rule pairs a pattern with the extractor applied to its submatches.
// A rule whose extractor declines lets the next rule run.
type rule[T any] struct {
	re      *regexp.Regexp
	extract func(match []string) (T, bool)
}

// firstMatch evaluates rules left to right and returns the first extracted value.
func firstMatch[T any](rules []rule[T], text string) (T, bool) {
	for _, r := range rules {
		match := r.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if v, ok := r.extract(match); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// clockReading is a parsed time before it is anchored to the clock.
type clockReading struct {
	value  time.Time
	anchor Anchor
}

// compiled is the immutable, ready-to-run form of Rules.
type compiled struct {
	maxInputRunes int

	timeOnly          []*regexp.Regexp
	amounts           []rule[decimal.Decimal]
	merchants         []rule[string]
	merchantStopWords map[string]struct{}
	merchantKeywords  []KeywordMapping
	categories        []CategoryKeywords
	categoryFallbacks []MerchantFallback
	paymentMethods    []KeywordMapping
	times             []rule[clockReading]
	weights           Weights
}

func compile(r Rules) (*compiled, error) {
	c := &compiled{
		maxInputRunes:     r.MaxInputRunes,
		merchantStopWords: make(map[string]struct{}, len(r.MerchantStopWords)),
		merchantKeywords:  r.MerchantKeywords,
		categories:        r.Categories,
		categoryFallbacks: r.CategoryFallbacks,
		paymentMethods:    r.PaymentMethods,
		weights:           r.Weights,
	}

	for i, p := range r.TimeOnlyPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: time-only pattern %d: %w", ErrInvalidRules, i, err)
		}
		c.timeOnly = append(c.timeOnly, re)
	}

	for i, p := range r.AmountPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: amount pattern %d: %w", ErrInvalidRules, i, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: amount pattern %d has no capture group", ErrInvalidRules, i)
		}
		c.amounts = append(c.amounts, rule[decimal.Decimal]{re: re, extract: extractLabeledAmount})
	}

	for i, p := range r.MerchantPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: merchant pattern %d: %w", ErrInvalidRules, i, err)
		}
		if p.Group < 0 || p.Group > re.NumSubexp() {
			return nil, fmt.Errorf("%w: merchant pattern %d has no group %d", ErrInvalidRules, i, p.Group)
		}
		c.merchants = append(c.merchants, rule[string]{re: re, extract: c.merchantExtractor(p.Group)})
	}
	for _, w := range r.MerchantStopWords {
		c.merchantStopWords[w] = struct{}{}
	}

	for i, l := range r.TimeLayouts {
		re, err := regexp.Compile(l.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: time pattern %d: %w", ErrInvalidRules, i, err)
		}
		switch l.Anchor {
		case AnchorNone, AnchorYear, AnchorDate:
		default:
			return nil, fmt.Errorf("%w: time pattern %d has unknown anchor %q", ErrInvalidRules, i, l.Anchor)
		}
		c.times = append(c.times, rule[clockReading]{re: re, extract: timeExtractor(l.Layout, l.Anchor)})
	}

	if err := r.Weights.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	return c, nil
}
