// Package api defines the core interfaces and data structures for spendscan.
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedExpenseInfo is the result of running the extraction engine over a block of text.
// Empty strings and nil pointers mean the field was not found.
type ParsedExpenseInfo struct {
	// Amount is always a positive magnitude when present.
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	MerchantName    string           `json:"merchant_name,omitempty"`
	CategoryName    string           `json:"category_name,omitempty"`
	TransactionTime *time.Time       `json:"transaction_time,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	Note            string           `json:"note,omitempty"`
	// Confidence is a weighted-presence score in [0, 1].
	Confidence float64 `json:"confidence"`
}

// HasAmount reports whether a positive amount was extracted.
func (p ParsedExpenseInfo) HasAmount() bool {
	return p.Amount != nil && p.Amount.IsPositive()
}

// Parser turns free text into a ParsedExpenseInfo and decides whether the result is usable.
type Parser interface {
	Parse(text string) ParsedExpenseInfo
	Validate(info ParsedExpenseInfo) bool
}

// Expense is a finished transaction record handed to persistence.
type Expense struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Merchant   string          `json:"merchant,omitempty"`
	Category   string          `json:"category"`
	Account    string          `json:"account"`
	Note       string          `json:"note,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     string          `json:"source"`
	Confidence float64         `json:"confidence"`
	// MessageID identifies the upstream item (email, file) for acknowledgment after a successful write.
	MessageID string `json:"-"`
}

// Reader reads expenses from a source and sends them to the provided channel.
// Implementations close the channel when done.
// The ackChan delivers the MessageID of every expense that was durably written.
type Reader interface {
	Read(ctx context.Context, out chan<- *Expense, ackChan <-chan string) error
}

// Writer consumes expenses from a channel and writes them to a destination.
// Successfully written MessageIDs are sent to the ackChan.
type Writer interface {
	Write(ctx context.Context, in <-chan *Expense, ackChan chan<- string) error
}

// Store persists a single expense synchronously.
type Store interface {
	Save(ctx context.Context, e *Expense) error
}
