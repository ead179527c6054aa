package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

// LineItem is one billable work unit (hours × rate) on an estimate.
type LineItem struct {
	ID         string          `json:"id"`
	EstimateID string          `json:"estimate_id"`
	Name       string          `json:"name"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate int64           `json:"hourly_rate"`
	Memo       string          `json:"memo"`
	Amount     int64           `json:"amount"`
	OrderIndex int             `json:"order_index"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LineItemInput is the request payload for one line item.
type LineItemInput struct {
	Name       string          `json:"name"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate int64           `json:"hourly_rate"`
	Memo       string          `json:"memo"`
}

// violations returns every constraint the input breaks, prefixed with field.
func (in LineItemInput) violations(field string) []string {
	var out []string
	if strings.TrimSpace(in.Name) == "" {
		out = append(out, field+".name: required")
	}
	if in.Hours.IsNegative() {
		out = append(out, fmt.Sprintf("%s.hours: must be >= 0, got %s", field, in.Hours))
	}
	if in.HourlyRate < 0 {
		out = append(out, fmt.Sprintf("%s.hourly_rate: must be >= 0, got %d", field, in.HourlyRate))
	}
	return out
}

// BuildLineItems validates inputs and returns persistable items with order
// indexes 0..n-1, built through a LineItemSet. All violations across all
// items are returned together.
func BuildLineItems(inputs []LineItemInput) ([]*LineItem, []string) {
	var violations []string
	set := NewLineItemSet()
	for i, in := range inputs {
		field := fmt.Sprintf("line_items[%d]", i)
		if v := in.violations(field); len(v) > 0 {
			violations = append(violations, v...)
			continue
		}
		in.Name = strings.TrimSpace(in.Name)
		if _, err := set.Add(in); err != nil {
			for _, v := range apperr.ViolationsOf(err) {
				violations = append(violations, field+"."+v)
			}
		}
	}
	if len(violations) > 0 {
		return nil, violations
	}
	items := set.Payload()
	if _, err := ComputeSubtotal(items); err != nil {
		return nil, apperr.ViolationsOf(err)
	}
	return items, nil
}
