// Package parser extracts structured expense data from noisy OCR or
// free-form text using ordered pattern rules, keyword tables and a
// weighted-presence confidence score.
//
// An Engine holds only compiled, read-only rules and is safe for concurrent use.
package parser

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// Engine runs the extraction pipeline.
type Engine struct {
	rules  *compiled
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to anchor times that carry no date.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the logger used for debug tracing of results.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New compiles rules into an Engine. Unset tables fall back to DefaultRules.
func New(rules Rules, opts ...Option) (*Engine, error) {
	c, err := compile(rules.WithDefaults())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rules:  c,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Default returns an Engine built from DefaultRules.
func Default(opts ...Option) *Engine {
	e, err := New(DefaultRules(), opts...)
	if err != nil {
		panic("parser: default rules do not compile: " + err.Error())
	}
	return e
}

// Parse extracts whatever it can from text. It never fails: missing fields
// are left empty and reflected in the confidence score.
func (e *Engine) Parse(text string) api.ParsedExpenseInfo {
	text = truncateRunes(text, e.rules.maxInputRunes)
	normalized := Normalize(text)

	if e.rules.isTimeOnly(normalized) {
		e.logger.Debug("skipping bare time or date", "text", normalized)
		return api.ParsedExpenseInfo{}
	}

	merchant := e.rules.extractMerchant(normalized)
	info := api.ParsedExpenseInfo{
		Amount:          e.rules.extractAmount(normalized),
		MerchantName:    merchant,
		CategoryName:    e.rules.inferCategory(normalized, merchant),
		TransactionTime: e.rules.extractTime(normalized, e.clock()),
		PaymentMethod:   e.rules.extractPaymentMethod(normalized),
		Note:            generateNote(text, merchant),
	}
	info.Confidence = e.rules.weights.Score(info)

	e.logger.Debug("parsed text",
		"amount", formatAmount(info.Amount),
		"merchant", info.MerchantName,
		"category", info.CategoryName,
		"payment_method", info.PaymentMethod,
		"confidence", info.Confidence,
	)

	return info
}

func formatAmount(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

// ParseAll parses each text independently, preserving order.
func (e *Engine) ParseAll(texts []string) []api.ParsedExpenseInfo {
	out := make([]api.ParsedExpenseInfo, len(texts))
	for i, t := range texts {
		out[i] = e.Parse(t)
	}
	return out
}

// Validate reports whether info is usable; see the package-level Validate.
func (e *Engine) Validate(info api.ParsedExpenseInfo) bool {
	return Validate(info)
}

// Validate reports whether info carries a positive amount and at least
// MinConfidence. Every caller that accepts parsed results applies this gate.
func Validate(info api.ParsedExpenseInfo) bool {
	return info.HasAmount() && info.Confidence >= MinConfidence
}

// MatchAgainstDirectory looks up the inferred category and payment method by
// exact name.
func MatchAgainstDirectory(info api.ParsedExpenseInfo, categories []api.Category, accounts []api.Account) (*api.Category, *api.Account) {
	return api.Directory{Categories: categories, Accounts: accounts}.Match(info)
}
