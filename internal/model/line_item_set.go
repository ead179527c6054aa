package model

import (
	"fmt"
	"sort"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

// Handle identifies a draft line item inside one LineItemSet. Handles are
// local sequence numbers; storage ids are assigned only when the set is
// persisted.
type Handle int

// LineItemPatch holds the fields that can be replaced on a draft item.
type LineItemPatch struct {
	Name       *string
	Hours      *decimal.Decimal
	HourlyRate *int64
	Memo       *string
}

type draftItem struct {
	handle Handle
	item   LineItem
}

// LineItemSet is the in-memory ordered collection of line items being edited
// for one estimate. It never talks to storage; Payload produces the final
// collection for a single replace.
type LineItemSet struct {
	nextHandle Handle
	items      []*draftItem
}

// NewLineItemSet returns an empty set.
func NewLineItemSet() *LineItemSet {
	return &LineItemSet{nextHandle: 1}
}

// LineItemSetFrom loads persisted items ordered by OrderIndex.
func LineItemSetFrom(items []*LineItem) *LineItemSet {
	s := NewLineItemSet()
	sorted := make([]*LineItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })
	for _, it := range sorted {
		s.items = append(s.items, &draftItem{handle: s.take(), item: *it})
	}
	return s
}

func (s *LineItemSet) take() Handle {
	h := s.nextHandle
	s.nextHandle++
	return h
}

func (s *LineItemSet) nextOrderIndex() int {
	next := 0
	for _, d := range s.items {
		if d.item.OrderIndex >= next {
			next = d.item.OrderIndex + 1
		}
	}
	return next
}

func (s *LineItemSet) find(h Handle) (int, *draftItem) {
	for i, d := range s.items {
		if d.handle == h {
			return i, d
		}
	}
	return -1, nil
}

// Add appends a new item. Names may still be empty in a draft; they are
// checked when the set is persisted.
func (s *LineItemSet) Add(in LineItemInput) (Handle, error) {
	amount, err := ComputeAmount(in.Hours, in.HourlyRate)
	if err != nil {
		return 0, err
	}
	h := s.take()
	s.items = append(s.items, &draftItem{
		handle: h,
		item: LineItem{
			Name:       in.Name,
			Hours:      in.Hours,
			HourlyRate: in.HourlyRate,
			Memo:       in.Memo,
			Amount:     amount,
			OrderIndex: s.nextOrderIndex(),
		},
	})
	return h, nil
}

// Update replaces the patched fields of h and recomputes its amount. The item
// is left unchanged when the patch is rejected.
func (s *LineItemSet) Update(h Handle, p LineItemPatch) error {
	_, d := s.find(h)
	if d == nil {
		return apperr.NotFound("line_items.update")
	}
	next := d.item
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Hours != nil {
		next.Hours = *p.Hours
	}
	if p.HourlyRate != nil {
		next.HourlyRate = *p.HourlyRate
	}
	if p.Memo != nil {
		next.Memo = *p.Memo
	}
	amount, err := ComputeAmount(next.Hours, next.HourlyRate)
	if err != nil {
		return err
	}
	next.Amount = amount
	d.item = next
	return nil
}

// Remove deletes h. Remaining order indexes are not renumbered here.
func (s *LineItemSet) Remove(h Handle) error {
	i, d := s.find(h)
	if d == nil {
		return apperr.NotFound("line_items.remove")
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Move places h at position in the list order.
func (s *LineItemSet) Move(h Handle, position int) error {
	i, d := s.find(h)
	if d == nil {
		return apperr.NotFound("line_items.move")
	}
	if position < 0 || position >= len(s.items) {
		return apperr.Validation("line_items.move", fmt.Sprintf("position: must be in [0,%d), got %d", len(s.items), position))
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.items = append(s.items[:position], append([]*draftItem{d}, s.items[position:]...)...)
	return nil
}

// Get returns a copy of the item behind h.
func (s *LineItemSet) Get(h Handle) (LineItem, bool) {
	_, d := s.find(h)
	if d == nil {
		return LineItem{}, false
	}
	return d.item, true
}

// Len returns the number of items.
func (s *LineItemSet) Len() int { return len(s.items) }

// Handles returns the handles in list order.
func (s *LineItemSet) Handles() []Handle {
	out := make([]Handle, len(s.items))
	for i, d := range s.items {
		out[i] = d.handle
	}
	return out
}

// Items returns copies of the items in list order with their in-memory
// order indexes, which may contain gaps after Remove.
func (s *LineItemSet) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	for i, d := range s.items {
		out[i] = d.item
	}
	return out
}

// Subtotal sums the current amounts.
func (s *LineItemSet) Subtotal() (int64, error) {
	return ComputeSubtotal(s.Payload())
}

// Inputs returns the request form of the items in list order.
func (s *LineItemSet) Inputs() []LineItemInput {
	out := make([]LineItemInput, len(s.items))
	for i, d := range s.items {
		out[i] = LineItemInput{Name: d.item.Name, Hours: d.item.Hours, HourlyRate: d.item.HourlyRate, Memo: d.item.Memo}
	}
	return out
}

// Payload returns the collection to persist: list order defines OrderIndex
// (0..n-1) and storage ids are cleared so the store assigns fresh ones.
func (s *LineItemSet) Payload() []*LineItem {
	out := make([]*LineItem, len(s.items))
	for i, d := range s.items {
		item := d.item
		item.ID = ""
		item.OrderIndex = i
		out[i] = &item
	}
	return out
}
