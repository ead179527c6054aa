package model

import (
	"errors"
	"testing"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hrs(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func orderIndexes(items []*LineItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.OrderIndex
	}
	return out
}

func TestLineItemSet_AddComputesAmountAndOrder(t *testing.T) {
	s := NewLineItemSet()
	h1, err := s.Add(LineItemInput{Name: "撮影", Hours: hrs("4"), HourlyRate: 1000})
	require.NoError(t, err)
	h2, err := s.Add(LineItemInput{Name: "編集", Hours: hrs("2"), HourlyRate: 2000})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	first, _ := s.Get(h1)
	second, _ := s.Get(h2)
	assert.Equal(t, int64(4000), first.Amount)
	assert.Equal(t, int64(4000), second.Amount)
	assert.Equal(t, 0, first.OrderIndex)
	assert.Equal(t, 1, second.OrderIndex)
	sub, err := s.Subtotal()
	require.NoError(t, err)
	assert.Equal(t, int64(8000), sub)
}

func TestLineItemSet_AddRejectsNegative(t *testing.T) {
	s := NewLineItemSet()
	_, err := s.Add(LineItemInput{Name: "x", Hours: hrs("-1"), HourlyRate: 1000})
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Zero(t, s.Len())
}

func TestLineItemSet_UpdateRecomputesAmount(t *testing.T) {
	s := NewLineItemSet()
	h, _ := s.Add(LineItemInput{Name: "編集", Hours: hrs("2"), HourlyRate: 2000})

	hours := hrs("3.5")
	require.NoError(t, s.Update(h, LineItemPatch{Hours: &hours}))
	got, _ := s.Get(h)
	assert.Equal(t, int64(7000), got.Amount)

	rate := int64(3000)
	require.NoError(t, s.Update(h, LineItemPatch{HourlyRate: &rate}))
	got, _ = s.Get(h)
	assert.Equal(t, int64(10500), got.Amount)
}

func TestLineItemSet_UpdateRejectedLeavesItemUnchanged(t *testing.T) {
	s := NewLineItemSet()
	h, _ := s.Add(LineItemInput{Name: "編集", Hours: hrs("2"), HourlyRate: 2000})
	before, _ := s.Get(h)

	name := "変更後"
	neg := int64(-1)
	err := s.Update(h, LineItemPatch{Name: &name, HourlyRate: &neg})
	require.Error(t, err)

	after, _ := s.Get(h)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("item changed after rejected update (-before +after):\n%s", diff)
	}
}

func TestLineItemSet_UnknownHandle(t *testing.T) {
	s := NewLineItemSet()
	assert.True(t, errors.Is(s.Update(42, LineItemPatch{}), apperr.ErrNotFound))
	assert.True(t, errors.Is(s.Remove(42), apperr.ErrNotFound))
	assert.True(t, errors.Is(s.Move(42, 0), apperr.ErrNotFound))
}

func TestLineItemSet_RemoveMiddleThenPayloadIsContiguous(t *testing.T) {
	s := NewLineItemSet()
	_, _ = s.Add(LineItemInput{Name: "a", Hours: hrs("1"), HourlyRate: 100})
	mid, _ := s.Add(LineItemInput{Name: "b", Hours: hrs("1"), HourlyRate: 100})
	_, _ = s.Add(LineItemInput{Name: "c", Hours: hrs("1"), HourlyRate: 100})

	require.NoError(t, s.Remove(mid))

	// in memory the gap is kept
	items := s.Items()
	assert.Equal(t, []int{0, 2}, []int{items[0].OrderIndex, items[1].OrderIndex})

	payload := s.Payload()
	assert.Equal(t, []int{0, 1}, orderIndexes(payload))
	assert.Equal(t, "a", payload[0].Name)
	assert.Equal(t, "c", payload[1].Name)
}

func TestLineItemSet_AddAfterRemoveUsesMaxPlusOne(t *testing.T) {
	s := NewLineItemSet()
	first, _ := s.Add(LineItemInput{Name: "a"})
	_, _ = s.Add(LineItemInput{Name: "b"})
	require.NoError(t, s.Remove(first))

	h, _ := s.Add(LineItemInput{Name: "c"})
	got, _ := s.Get(h)
	assert.Equal(t, 2, got.OrderIndex)
}

func TestLineItemSet_Move(t *testing.T) {
	s := NewLineItemSet()
	a, _ := s.Add(LineItemInput{Name: "a"})
	b, _ := s.Add(LineItemInput{Name: "b"})
	c, _ := s.Add(LineItemInput{Name: "c"})

	require.NoError(t, s.Move(c, 0))
	assert.Equal(t, []Handle{c, a, b}, s.Handles())

	require.NoError(t, s.Move(c, 2))
	assert.Equal(t, []Handle{a, b, c}, s.Handles())

	err := s.Move(a, 3)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, []Handle{a, b, c}, s.Handles())
}

func TestLineItemSetFrom_SortsAndClearsIDsOnPayload(t *testing.T) {
	s := LineItemSetFrom([]*LineItem{
		{ID: "id-2", Name: "second", OrderIndex: 1},
		{ID: "id-1", Name: "first", OrderIndex: 0},
	})
	payload := s.Payload()
	require.Len(t, payload, 2)
	assert.Equal(t, "first", payload[0].Name)
	assert.Empty(t, payload[0].ID)
	assert.Empty(t, payload[1].ID)
}
