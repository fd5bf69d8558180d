package parser

import (
	"errors"
	"math"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// MinConfidence is the lowest score at which a result with an amount is usable.
const MinConfidence = 0.3

// Weights are the contributions of each extracted field to the confidence score.
type Weights struct {
	Amount        float64 `json:"amount"`
	Merchant      float64 `json:"merchant"`
	Category      float64 `json:"category"`
	Time          float64 `json:"time"`
	PaymentMethod float64 `json:"payment_method"`
}

// DefaultWeights returns weights that sum to 1.
func DefaultWeights() Weights {
	return Weights{
		Amount:        0.5,
		Merchant:      0.2,
		Category:      0.15,
		Time:          0.1,
		PaymentMethod: 0.05,
	}
}

// IsZero reports whether no weight is set.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

func (w Weights) validate() error {
	for _, v := range []float64{w.Amount, w.Merchant, w.Category, w.Time, w.PaymentMethod} {
		if v < 0 || math.IsNaN(v) {
			return errors.New("weights must be non-negative")
		}
	}
	return nil
}

// Score sums the weights of the fields present in info, clamped to [0, 1]
// and rounded to four decimals.
func (w Weights) Score(info api.ParsedExpenseInfo) float64 {
	var score float64
	if info.Amount != nil {
		score += w.Amount
	}
	if info.MerchantName != "" {
		score += w.Merchant
	}
	if info.CategoryName != "" {
		score += w.Category
	}
	if info.TransactionTime != nil {
		score += w.Time
	}
	if info.PaymentMethod != "" {
		score += w.PaymentMethod
	}
	score = math.Min(score, 1)
	return math.Round(score*1e4) / 1e4
}
