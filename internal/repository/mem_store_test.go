package repository

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstimate(t *testing.T, userID, token string, items ...model.LineItemInput) *model.Estimate {
	t.Helper()
	e, err := model.NewEstimate(userID, model.EstimateInput{Title: "見積もり", RevisionLimit: 2, LineItems: items}, token)
	require.NoError(t, err)
	return e
}

func TestMemEstimateRepository_InsertAndGetCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	e := newTestEstimate(t, "u1", "tok-1", model.LineItemInput{Name: "撮影", Hours: decimal.NewFromInt(4), HourlyRate: 1000})

	require.NoError(t, store.Estimates.Insert(ctx, e))
	require.NotEmpty(t, e.ID)
	require.NotEmpty(t, e.LineItems[0].ID)

	got, err := store.Estimates.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), got.Total)

	got.Title = "mutated"
	got.LineItems[0].Amount = 1
	again, _ := store.Estimates.GetByID(ctx, e.ID)
	assert.Equal(t, "見積もり", again.Title)
	assert.Equal(t, int64(4000), again.LineItems[0].Amount)

	byToken, err := store.Estimates.GetByShareToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byToken.ID)
}

func TestMemEstimateRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	_, err := store.Estimates.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = store.Estimates.GetByShareToken(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(store.Estimates.UpdatePolicy(ctx, "missing", 1, 1), apperr.ErrNotFound))
}

func TestMemEstimateRepository_ReplaceLineItemsRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	e := newTestEstimate(t, "u1", "tok", model.LineItemInput{Name: "a", Hours: decimal.NewFromInt(1), HourlyRate: 100})
	require.NoError(t, store.Estimates.Insert(ctx, e))

	require.NoError(t, store.Estimates.ReplaceLineItems(ctx, e.ID, []*model.LineItem{}))
	got, _ := store.Estimates.GetByID(ctx, e.ID)
	assert.Zero(t, got.Subtotal)
	assert.Zero(t, got.Total)
	assert.Empty(t, got.LineItems)
	assert.NoError(t, got.Verify())
}

func TestMemEstimateRepository_ReplaceLineItemsRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	e := newTestEstimate(t, "u1", "tok", model.LineItemInput{Name: "a", Hours: decimal.NewFromInt(1), HourlyRate: 100})
	require.NoError(t, store.Estimates.Insert(ctx, e))

	huge := []*model.LineItem{{Name: "a", Amount: math.MaxInt64}, {Name: "b", Amount: 1}}
	err := store.Estimates.ReplaceLineItems(ctx, e.ID, huge)
	assert.True(t, errors.Is(err, model.ErrAmountOverflow))

	got, _ := store.Estimates.GetByID(ctx, e.ID)
	assert.Equal(t, int64(100), got.Total)
	require.Len(t, got.LineItems, 1)
	assert.NoError(t, got.Verify())
}

func TestMemEstimateRepository_ScheduleFieldsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	start, err := model.ParseDate("2026-04-06")
	require.NoError(t, err)
	days := 5
	e, err := model.NewEstimate("u1", model.EstimateInput{
		Title:           "見積もり",
		EstimateDetails: model.EstimateDetails{EstimatedStartDate: &start, EstimatedDurationDays: &days},
	}, "tok")
	require.NoError(t, err)
	require.NoError(t, store.Estimates.Insert(ctx, e))

	got, err := store.Estimates.GetByID(ctx, e.ID)
	require.NoError(t, err)
	*got.EstimatedDurationDays = 99
	got.EstimatedStartDate.Time = got.EstimatedStartDate.AddDate(1, 0, 0)
	got.EstimatedEndDate.Time = got.EstimatedEndDate.AddDate(1, 0, 0)

	again, err := store.Estimates.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *again.EstimatedDurationDays)
	assert.Equal(t, "2026-04-06", again.EstimatedStartDate.String())
	assert.Equal(t, "2026-04-13", again.EstimatedEndDate.String())

	// the caller's own pointers are not aliased into the store either
	days = 42
	again, _ = store.Estimates.GetByID(ctx, e.ID)
	assert.Equal(t, 5, *again.EstimatedDurationDays)
}

func TestMemEstimateRepository_AppendRevisionGuardsCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	e := newTestEstimate(t, "u1", "tok")
	require.NoError(t, store.Estimates.Insert(ctx, e))

	require.NoError(t, store.Estimates.AppendRevision(ctx, e.ID, &model.RevisionLog{UsedNumber: 1}, 1))

	// a writer that read the old count loses
	err := store.Estimates.AppendRevision(ctx, e.ID, &model.RevisionLog{UsedNumber: 1}, 1)
	assert.True(t, errors.Is(err, ErrRevisionConflict))

	got, _ := store.Estimates.GetByID(ctx, e.ID)
	assert.Equal(t, 1, got.RevisionsUsed)
	assert.Len(t, got.RevisionLogs, 1)
	assert.NoError(t, got.Verify())
}

func TestMemEstimateRepository_ListNewestFirstHeaderOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	first := newTestEstimate(t, "u1", "t1")
	second := newTestEstimate(t, "u1", "t2")
	other := newTestEstimate(t, "u2", "t3")
	for _, e := range []*model.Estimate{first, second, other} {
		require.NoError(t, store.Estimates.Insert(ctx, e))
	}

	list, err := store.Estimates.ListByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Nil(t, list[0].LineItems)
}

func TestMemTemplateRepository_SystemSeededAndUserCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	system, err := store.Templates.ListSystem(ctx)
	require.NoError(t, err)
	require.Len(t, system, 3)
	assert.Equal(t, "CM制作", system[0].Name)

	tpl := &model.Template{OwnerUserID: "u1", Name: "MV 低予算", DefaultHourlyRate: 3000}
	require.NoError(t, store.Templates.Create(ctx, tpl))
	assert.Equal(t, model.TemplateUser, tpl.Kind)

	e := newTestEstimate(t, "u1", "tok")
	e.TemplateID = &tpl.ID
	require.NoError(t, store.Estimates.Insert(ctx, e))

	tpl.DefaultHourlyRate = 9000
	require.NoError(t, store.Templates.Update(ctx, tpl))
	got, _ := store.Templates.GetUserByID(ctx, tpl.ID)
	assert.Equal(t, int64(9000), got.DefaultHourlyRate)

	require.NoError(t, store.Templates.Delete(ctx, tpl.ID))
	est, _ := store.Estimates.GetByID(ctx, e.ID)
	assert.Nil(t, est.TemplateID)
	assert.True(t, errors.Is(store.Templates.Delete(ctx, tpl.ID), apperr.ErrNotFound))
}

func TestMemEstimateRepository_InsertRejectsUnknownTemplate(t *testing.T) {
	store := NewMemStore()
	e := newTestEstimate(t, "u1", "tok")
	missing := "missing"
	e.TemplateID = &missing
	err := store.Estimates.Insert(context.Background(), e)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
