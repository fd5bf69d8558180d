// Package command turns the URL-style add-expense trigger into an Expense.
//
// A trigger looks like spendscan://add-expense?amount=12.5&category=餐饮&text=...
// Only the query parameters matter here.
package command

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// DefaultNote is stored when the trigger carries no note of its own.
const DefaultNote = "快捷指令添加"

// Source tags expenses created through the trigger.
const Source = "shortcut"

// maxTextNoteRunes bounds how much unparsed text is kept as a note.
const maxTextNoteRunes = 50

// ErrInvalidAmount is returned when no positive amount is available.
var ErrInvalidAmount = errors.New("金额必须大于0")

// Request holds the raw trigger parameters. Empty strings mean "not given".
type Request struct {
	Amount   *decimal.Decimal
	Category string
	Account  string
	Note     string
	Text     string
}

// FromQuery reads amount, category, account, note and text. An amount that
// is present but not a number is rejected.
func FromQuery(q url.Values) (Request, error) {
	req := Request{
		Category: strings.TrimSpace(q.Get("category")),
		Account:  strings.TrimSpace(q.Get("account")),
		Note:     strings.TrimSpace(q.Get("note")),
		Text:     q.Get("text"),
	}

	if raw := strings.TrimSpace(q.Get("amount")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Request{}, ErrInvalidAmount
		}
		req.Amount = &d
	}
	return req, nil
}

// Resolver applies parsing, defaults and directory lookups to a Request.
type Resolver struct {
	parser    api.Parser
	directory api.Directory
	clock     func() time.Time
}

// NewResolver returns a Resolver. A nil clock means time.Now.
func NewResolver(p api.Parser, directory api.Directory, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{parser: p, directory: directory, clock: clock}
}

// Resolve builds the expense described by req.
//
// When req.Text is set it is parsed. A result that passes validation
// overrides every explicit parameter it has a value for; otherwise the text,
// cut to 50 runes, is kept as the note unless a note was given.
func (r *Resolver) Resolve(req Request) (*api.Expense, error) {
	e := &api.Expense{
		Category:   req.Category,
		Account:    req.Account,
		Note:       req.Note,
		Timestamp:  r.clock(),
		Source:     Source,
		Confidence: 1,
	}
	if req.Amount != nil {
		e.Amount = *req.Amount
	}

	if req.Text != "" {
		info := r.parser.Parse(req.Text)
		if r.parser.Validate(info) {
			applyParsed(e, info)
		} else if e.Note == "" {
			e.Note = truncate(strings.TrimSpace(req.Text), maxTextNoteRunes)
		}
	}

	if !e.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if _, ok := r.directory.FindCategory(e.Category); !ok {
		e.Category = api.DefaultCategory
	}
	if _, ok := r.directory.FindAccount(e.Account); !ok {
		e.Account = api.DefaultAccount
	}
	if e.Note == "" {
		e.Note = DefaultNote
	}

	e.ID = uuid.NewString()
	return e, nil
}

func applyParsed(e *api.Expense, info api.ParsedExpenseInfo) {
	e.Amount = *info.Amount
	e.Confidence = info.Confidence
	if info.CategoryName != "" {
		e.Category = info.CategoryName
	}
	if info.PaymentMethod != "" {
		e.Account = info.PaymentMethod
	}
	if info.Note != "" {
		e.Note = info.Note
	}
	if info.MerchantName != "" {
		e.Merchant = info.MerchantName
	}
	if info.TransactionTime != nil {
		e.Timestamp = *info.TransactionTime
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
