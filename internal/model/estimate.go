package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
)

// Estimate is a priced, shareable proposal owned by one user.
type Estimate struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	TemplateID         *string `json:"template_id"` // user templates only; system templates are not referenced
	Title              string  `json:"title"`
	RevisionLimit      int     `json:"revision_limit"`
	ExtraRevisionRate  int64   `json:"extra_revision_rate"`
	RevisionsUsed      int     `json:"revisions_used"`
	Subtotal           int64   `json:"subtotal"`
	Total              int64   `json:"total"`
	ShareToken         string  `json:"share_token"`
	Notes              string  `json:"notes"`
	TermsAndConditions string  `json:"terms_and_conditions"`

	EstimatedStartDate    *Date `json:"estimated_start_date"`
	EstimatedDurationDays *int  `json:"estimated_duration_days"`
	EstimatedEndDate      *Date `json:"estimated_end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LineItems    []*LineItem    `json:"line_items"`
	RevisionLogs []*RevisionLog `json:"revision_logs"`
}

// EstimateInput is the create payload.
type EstimateInput struct {
	Title             string          `json:"title"`
	TemplateID        *string         `json:"template_id,omitempty"`
	RevisionLimit     int             `json:"revision_limit"`
	ExtraRevisionRate int64           `json:"extra_revision_rate"`
	LineItems         []LineItemInput `json:"line_items"`
	EstimateDetails
}

// EstimateDetails are the descriptive fields that can be edited after
// creation without touching pricing or the revision ledger.
type EstimateDetails struct {
	Notes                 string `json:"notes"`
	TermsAndConditions    string `json:"terms_and_conditions"`
	EstimatedStartDate    *Date  `json:"estimated_start_date,omitempty"`
	EstimatedDurationDays *int   `json:"estimated_duration_days,omitempty"`
}

// MaxDurationDays caps estimated_duration_days at roughly ten years of
// business days.
const MaxDurationDays = 3650

func (d EstimateDetails) violations() []string {
	var out []string
	if d.EstimatedDurationDays != nil {
		switch days := *d.EstimatedDurationDays; {
		case days < 0:
			out = append(out, fmt.Sprintf("estimated_duration_days: must be >= 0, got %d", days))
		case days > MaxDurationDays:
			out = append(out, fmt.Sprintf("estimated_duration_days: must be <= %d, got %d", MaxDurationDays, days))
		}
	}
	return out
}

// EndDate derives the finish day from the start date and duration, or nil
// when either is missing.
func (d EstimateDetails) EndDate() *Date {
	if d.EstimatedStartDate == nil || d.EstimatedDurationDays == nil {
		return nil
	}
	end := AddBusinessDays(*d.EstimatedStartDate, *d.EstimatedDurationDays)
	return &end
}

// DetailsPatch is a partial update of title and details. ClearSchedule drops
// both schedule fields before the others are applied.
type DetailsPatch struct {
	Title                 *string `json:"title,omitempty"`
	Notes                 *string `json:"notes,omitempty"`
	TermsAndConditions    *string `json:"terms_and_conditions,omitempty"`
	EstimatedStartDate    *Date   `json:"estimated_start_date,omitempty"`
	EstimatedDurationDays *int    `json:"estimated_duration_days,omitempty"`
	ClearSchedule         bool    `json:"clear_schedule,omitempty"`
}

func policyViolations(limit int, rate int64) []string {
	var out []string
	if limit < 0 {
		out = append(out, fmt.Sprintf("revision_limit: must be >= 0, got %d", limit))
	}
	if rate < 0 {
		out = append(out, fmt.Sprintf("extra_revision_rate: must be >= 0, got %d", rate))
	}
	return out
}

// ValidatePolicy checks a revision policy update.
func ValidatePolicy(limit int, rate int64) error {
	if v := policyViolations(limit, rate); len(v) > 0 {
		return apperr.Validation("estimate.update_policy", v...)
	}
	return nil
}

// ValidateLineItems checks a replacement collection and returns the items
// to persist.
func ValidateLineItems(inputs []LineItemInput) ([]*LineItem, error) {
	items, v := BuildLineItems(inputs)
	if len(v) > 0 {
		return nil, apperr.Validation("estimate.replace_line_items", v...)
	}
	return items, nil
}

// NewEstimate validates in and builds an unsaved estimate with zero revisions
// used. Every violation is reported in a single error.
func NewEstimate(userID string, in EstimateInput, shareToken string) (*Estimate, error) {
	var violations []string
	title := strings.TrimSpace(in.Title)
	if title == "" {
		violations = append(violations, "title: required")
	}
	violations = append(violations, policyViolations(in.RevisionLimit, in.ExtraRevisionRate)...)
	violations = append(violations, in.EstimateDetails.violations()...)
	items, itemViolations := BuildLineItems(in.LineItems)
	violations = append(violations, itemViolations...)
	if len(violations) > 0 {
		return nil, apperr.Validation("estimate.create", violations...)
	}

	e := &Estimate{
		UserID:             userID,
		TemplateID:         in.TemplateID,
		Title:              title,
		RevisionLimit:      in.RevisionLimit,
		ExtraRevisionRate:  in.ExtraRevisionRate,
		ShareToken:         shareToken,
		Notes:              in.Notes,
		TermsAndConditions: in.TermsAndConditions,
		RevisionLogs:       []*RevisionLog{},
	}
	e.setDetails(in.EstimateDetails)
	if err := e.SetLineItems(items); err != nil {
		return nil, err
	}
	return e, nil
}

// Details returns the editable descriptive fields.
func (e *Estimate) Details() EstimateDetails {
	return EstimateDetails{
		Notes:                 e.Notes,
		TermsAndConditions:    e.TermsAndConditions,
		EstimatedStartDate:    e.EstimatedStartDate,
		EstimatedDurationDays: e.EstimatedDurationDays,
	}
}

func (e *Estimate) setDetails(d EstimateDetails) {
	e.Notes = d.Notes
	e.TermsAndConditions = d.TermsAndConditions
	e.EstimatedStartDate = d.EstimatedStartDate
	e.EstimatedDurationDays = d.EstimatedDurationDays
	e.EstimatedEndDate = d.EndDate()
}

// ApplyDetails applies p and validates the result. e is unchanged on error.
func (e *Estimate) ApplyDetails(p DetailsPatch) error {
	title := e.Title
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
	}
	d := e.Details()
	if p.ClearSchedule {
		d.EstimatedStartDate = nil
		d.EstimatedDurationDays = nil
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.TermsAndConditions != nil {
		d.TermsAndConditions = *p.TermsAndConditions
	}
	if p.EstimatedStartDate != nil {
		d.EstimatedStartDate = p.EstimatedStartDate
	}
	if p.EstimatedDurationDays != nil {
		d.EstimatedDurationDays = p.EstimatedDurationDays
	}

	var violations []string
	if title == "" {
		violations = append(violations, "title: required")
	}
	violations = append(violations, d.violations()...)
	if len(violations) > 0 {
		return apperr.Validation("estimate.update_details", violations...)
	}
	e.Title = title
	e.setDetails(d)
	return nil
}

// SetLineItems replaces the items and recomputes subtotal and total. e is
// unchanged when the subtotal overflows.
func (e *Estimate) SetLineItems(items []*LineItem) error {
	subtotal, err := ComputeSubtotal(items)
	if err != nil {
		return err
	}
	e.LineItems = items
	e.Subtotal = subtotal
	e.Total = ComputeTotal(subtotal)
	return nil
}

// Ledger returns the revision ledger for the current policy and usage.
func (e *Estimate) Ledger() RevisionLedger {
	return RevisionLedger{Limit: e.RevisionLimit, Used: e.RevisionsUsed, ExtraRevisionRate: e.ExtraRevisionRate}
}

// Verify checks the stored invariants of a fully loaded estimate. A mismatch
// is reported as Corruption and never repaired here.
func (e *Estimate) Verify() error {
	v := e.headerViolations()
	if sum, err := ComputeSubtotal(e.LineItems); err != nil {
		v = append(v, apperr.ViolationsOf(err)...)
	} else if sum != e.Subtotal {
		v = append(v, fmt.Sprintf("subtotal %d != sum of line item amounts %d", e.Subtotal, sum))
	}
	for i, item := range e.LineItems {
		if item.OrderIndex != i {
			v = append(v, fmt.Sprintf("line_items[%d]: order_index %d, want %d", i, item.OrderIndex, i))
		}
		if amount, err := ComputeAmount(item.Hours, item.HourlyRate); err != nil || amount != item.Amount {
			v = append(v, fmt.Sprintf("line_items[%d]: amount %d does not match hours x rate", i, item.Amount))
		}
	}
	if len(e.RevisionLogs) != e.RevisionsUsed {
		v = append(v, fmt.Sprintf("revisions_used %d != %d revision log entries", e.RevisionsUsed, len(e.RevisionLogs)))
	}
	for i, entry := range e.RevisionLogs {
		if entry.UsedNumber != i+1 {
			v = append(v, fmt.Sprintf("revision_logs[%d]: used_number %d, want %d", i, entry.UsedNumber, i+1))
		}
	}
	if len(v) > 0 {
		return apperr.Corruption("estimate.verify", v...)
	}
	return nil
}

// VerifyHeader checks what can be checked without line items or logs, for
// list reads.
func (e *Estimate) VerifyHeader() error {
	if v := e.headerViolations(); len(v) > 0 {
		return apperr.Corruption("estimate.verify", v...)
	}
	return nil
}

func (e *Estimate) headerViolations() []string {
	var v []string
	if e.Subtotal != e.Total {
		v = append(v, fmt.Sprintf("subtotal %d != total %d", e.Subtotal, e.Total))
	}
	if e.RevisionsUsed < 0 {
		v = append(v, fmt.Sprintf("revisions_used %d is negative", e.RevisionsUsed))
	}
	return v
}
