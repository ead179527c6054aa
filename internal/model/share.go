package model

import "time"

// ShareView is the read-only projection of an estimate shown to a client
// through its share link. It carries no user, estimate or template ids.
type ShareView struct {
	Title              string `json:"title"`
	Notes              string `json:"notes"`
	TermsAndConditions string `json:"terms_and_conditions"`

	EstimatedStartDate    *Date `json:"estimated_start_date"`
	EstimatedDurationDays *int  `json:"estimated_duration_days"`
	EstimatedEndDate      *Date `json:"estimated_end_date"`

	LineItems []ShareLineItem `json:"line_items"`
	Subtotal  int64           `json:"subtotal"`
	Total     int64           `json:"total"`

	RevisionLimit      int                `json:"revision_limit"`
	ExtraRevisionRate  int64              `json:"extra_revision_rate"`
	RevisionsUsed      int                `json:"revisions_used"`
	RevisionsRemaining int                `json:"revisions_remaining"`
	LimitReached       bool               `json:"limit_reached"`
	Overage            Overage            `json:"overage"`
	RevisionLogs       []ShareRevisionLog `json:"revision_logs"` // newest first

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShareLineItem struct {
	Name       string `json:"name"`
	Hours      string `json:"hours"`
	HourlyRate int64  `json:"hourly_rate"`
	Memo       string `json:"memo"`
	Amount     int64  `json:"amount"`
}

type ShareRevisionLog struct {
	UsedNumber    int       `json:"used_number"`
	Memo          string    `json:"memo"`
	OverageCharge int64     `json:"overage_charge"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectShareView builds the client view of e. Remaining is clamped at zero
// for display; the overage block carries anything past the limit.
func ProjectShareView(e *Estimate) *ShareView {
	ledger := e.Ledger()
	remaining := ledger.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	v := &ShareView{
		Title:                 e.Title,
		Notes:                 e.Notes,
		TermsAndConditions:    e.TermsAndConditions,
		EstimatedStartDate:    e.EstimatedStartDate,
		EstimatedDurationDays: e.EstimatedDurationDays,
		EstimatedEndDate:      e.EstimatedEndDate,
		LineItems:             make([]ShareLineItem, 0, len(e.LineItems)),
		Subtotal:              e.Subtotal,
		Total:                 e.Total,
		RevisionLimit:         e.RevisionLimit,
		ExtraRevisionRate:     e.ExtraRevisionRate,
		RevisionsUsed:         e.RevisionsUsed,
		RevisionsRemaining:    remaining,
		LimitReached:          ledger.State() == LedgerLimitReached,
		Overage:               ledger.Overage(),
		RevisionLogs:          make([]ShareRevisionLog, 0, len(e.RevisionLogs)),
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
	for _, item := range e.LineItems {
		v.LineItems = append(v.LineItems, ShareLineItem{
			Name:       item.Name,
			Hours:      item.Hours.String(),
			HourlyRate: item.HourlyRate,
			Memo:       item.Memo,
			Amount:     item.Amount,
		})
	}
	for i := len(e.RevisionLogs) - 1; i >= 0; i-- {
		entry := e.RevisionLogs[i]
		v.RevisionLogs = append(v.RevisionLogs, ShareRevisionLog{
			UsedNumber:    entry.UsedNumber,
			Memo:          entry.Memo,
			OverageCharge: entry.OverageCharge,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return v
}
