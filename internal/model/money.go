package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

func init() {
	// hours are exchanged as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrInvalidQuantity is wrapped by every arithmetic failure on negative input.
var ErrInvalidQuantity = errors.New("invalid quantity")

// ErrAmountOverflow is wrapped when an amount or sum does not fit in int64 yen.
var ErrAmountOverflow = errors.New("amount overflow")

var maxYen = decimal.NewFromInt(math.MaxInt64)

func overflow(op, violation string) error {
	return &apperr.Error{Kind: apperr.KindValidation, Op: op, Violations: []string{violation}, Err: ErrAmountOverflow}
}

// ComputeAmount returns hours × hourlyRate in yen, rounded half-up.
func ComputeAmount(hours decimal.Decimal, hourlyRate int64) (int64, error) {
	var violations []string
	if hours.IsNegative() {
		violations = append(violations, fmt.Sprintf("hours: must be >= 0, got %s", hours))
	}
	if hourlyRate < 0 {
		violations = append(violations, fmt.Sprintf("hourly_rate: must be >= 0, got %d", hourlyRate))
	}
	if len(violations) > 0 {
		return 0, &apperr.Error{Kind: apperr.KindValidation, Op: "compute_amount", Violations: violations, Err: ErrInvalidQuantity}
	}
	// both operands are non-negative, so half-away-from-zero is half-up
	amount := hours.Mul(decimal.NewFromInt(hourlyRate)).Round(0)
	if amount.GreaterThan(maxYen) {
		return 0, overflow("compute_amount", fmt.Sprintf("amount: hours x hourly_rate exceeds %d", int64(math.MaxInt64)))
	}
	return amount.IntPart(), nil
}

// ComputeSubtotal sums the amounts of items, failing instead of wrapping
// when the sum leaves the int64 range.
func ComputeSubtotal(items []*LineItem) (int64, error) {
	var sum int64
	for _, item := range items {
		next := sum + item.Amount
		if (item.Amount > 0 && next < sum) || (item.Amount < 0 && next > sum) {
			return 0, overflow("compute_subtotal", fmt.Sprintf("subtotal: sum of line item amounts exceeds %d", int64(math.MaxInt64)))
		}
		sum = next
	}
	return sum, nil
}

// ComputeTotal returns the estimate total for subtotal. There is no tax,
// discount or overage layer; overage charges are informational only.
func ComputeTotal(subtotal int64) int64 {
	return subtotal
}
