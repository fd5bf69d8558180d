package api

import (
	"time"

	"github.com/google/uuid"
)

// NewExpense builds an Expense from a parse result. Missing category and
// account fall back to DefaultCategory and DefaultAccount, and a missing
// transaction time falls back to received.
func NewExpense(info ParsedExpenseInfo, source, messageID string, received time.Time) *Expense {
	e := &Expense{
		ID:         uuid.NewString(),
		Merchant:   info.MerchantName,
		Category:   info.CategoryName,
		Account:    info.PaymentMethod,
		Note:       info.Note,
		Timestamp:  received,
		Source:     source,
		Confidence: info.Confidence,
		MessageID:  messageID,
	}
	if info.Amount != nil {
		e.Amount = *info.Amount
	}
	if info.TransactionTime != nil {
		e.Timestamp = *info.TransactionTime
	}
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	if e.Account == "" {
		e.Account = DefaultAccount
	}
	return e
}
