package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
)

// RevisionLog is one consumed revision. Entries are immutable and append-only.
type RevisionLog struct {
	ID            string    `json:"id"`
	EstimateID    string    `json:"estimate_id"`
	UsedNumber    int       `json:"used_number"`
	Memo          string    `json:"memo"`
	OverageCharge int64     `json:"overage_charge"`
	CreatedAt     time.Time `json:"created_at"`
}

// LedgerState is the state of a revision ledger.
type LedgerState string

const (
	LedgerNormal       LedgerState = "normal"
	LedgerLimitReached LedgerState = "limit_reached"
)

// OveragePolicy decides whether revisions can be consumed past the limit.
type OveragePolicy string

const (
	// OverageStrict blocks consumption once the limit is reached.
	OverageStrict OveragePolicy = "strict"
	// OveragePermissive allows it and records the extra revision rate on the
	// entry. The charge is informational; totals never include it.
	OveragePermissive OveragePolicy = "permissive"
)

// ParseOveragePolicy parses a configuration value; empty means strict.
func ParseOveragePolicy(s string) (OveragePolicy, error) {
	switch OveragePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverageStrict:
		return OverageStrict, nil
	case OveragePermissive:
		return OveragePermissive, nil
	default:
		return "", fmt.Errorf("invalid overage policy %q: must be strict or permissive", s)
	}
}

// RevisionLedger tracks consumed revisions against a limit.
type RevisionLedger struct {
	Limit             int
	Used              int
	ExtraRevisionRate int64
}

// Remaining may be negative when the limit was lowered below Used.
func (l RevisionLedger) Remaining() int { return l.Limit - l.Used }

func (l RevisionLedger) State() LedgerState {
	if l.Remaining() > 0 {
		return LedgerNormal
	}
	return LedgerLimitReached
}

// Consume performs one revision transition and returns the entry to append
// together with the next ledger. The receiver is never modified; on
// LimitReached the caller keeps its current state.
func (l RevisionLedger) Consume(memo string, policy OveragePolicy, now time.Time) (*RevisionLog, RevisionLedger, error) {
	var charge int64
	if l.State() == LedgerLimitReached {
		if policy != OveragePermissive {
			return nil, l, apperr.LimitReached("revision.consume")
		}
		charge = l.ExtraRevisionRate
	}
	entry := &RevisionLog{
		UsedNumber:    l.Used + 1,
		Memo:          strings.TrimSpace(memo),
		OverageCharge: charge,
		CreatedAt:     now,
	}
	next := l
	next.Used++
	return entry, next, nil
}

// Overage is informational: how many revisions went past the limit and what
// they would cost at the extra revision rate.
type Overage struct {
	Count  int   `json:"count"`
	Charge int64 `json:"charge"`
}

func (l RevisionLedger) Overage() Overage {
	n := l.Used - l.Limit
	if n <= 0 || l.Limit < 0 {
		return Overage{}
	}
	return Overage{Count: n, Charge: int64(n) * l.ExtraRevisionRate}
}
