package service

import (
	"context"

	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mock EstimateRepository
// ---------------------------------------------------------------------------

// mockEstimateRepository delegates to inner unless a func field is set.
type mockEstimateRepository struct {
	inner repository.EstimateRepository

	insertFunc           func(ctx context.Context, e *model.Estimate) error
	getByIDFunc          func(ctx context.Context, id string) (*model.Estimate, error)
	getByShareTokenFunc  func(ctx context.Context, token string) (*model.Estimate, error)
	listByUserIDFunc     func(ctx context.Context, userID string) ([]*model.Estimate, error)
	replaceLineItemsFunc func(ctx context.Context, id string, items []*model.LineItem) error
	appendRevisionFunc   func(ctx context.Context, id string, entry *model.RevisionLog, newUsedCount int) error
	updatePolicyFunc     func(ctx context.Context, id string, limit int, rate int64) error
	updateDetailsFunc    func(ctx context.Context, id, title string, d model.EstimateDetails) error
}

func (m *mockEstimateRepository) Insert(ctx context.Context, e *model.Estimate) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, e)
	}
	return m.inner.Insert(ctx, e)
}
func (m *mockEstimateRepository) GetByID(ctx context.Context, id string) (*model.Estimate, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return m.inner.GetByID(ctx, id)
}
func (m *mockEstimateRepository) GetByShareToken(ctx context.Context, token string) (*model.Estimate, error) {
	if m.getByShareTokenFunc != nil {
		return m.getByShareTokenFunc(ctx, token)
	}
	return m.inner.GetByShareToken(ctx, token)
}
func (m *mockEstimateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Estimate, error) {
	if m.listByUserIDFunc != nil {
		return m.listByUserIDFunc(ctx, userID)
	}
	return m.inner.ListByUserID(ctx, userID)
}
func (m *mockEstimateRepository) ReplaceLineItems(ctx context.Context, id string, items []*model.LineItem) error {
	if m.replaceLineItemsFunc != nil {
		return m.replaceLineItemsFunc(ctx, id, items)
	}
	return m.inner.ReplaceLineItems(ctx, id, items)
}
func (m *mockEstimateRepository) AppendRevision(ctx context.Context, id string, entry *model.RevisionLog, newUsedCount int) error {
	if m.appendRevisionFunc != nil {
		return m.appendRevisionFunc(ctx, id, entry, newUsedCount)
	}
	return m.inner.AppendRevision(ctx, id, entry, newUsedCount)
}
func (m *mockEstimateRepository) UpdatePolicy(ctx context.Context, id string, limit int, rate int64) error {
	if m.updatePolicyFunc != nil {
		return m.updatePolicyFunc(ctx, id, limit, rate)
	}
	return m.inner.UpdatePolicy(ctx, id, limit, rate)
}
func (m *mockEstimateRepository) UpdateDetails(ctx context.Context, id, title string, d model.EstimateDetails) error {
	if m.updateDetailsFunc != nil {
		return m.updateDetailsFunc(ctx, id, title, d)
	}
	return m.inner.UpdateDetails(ctx, id, title, d)
}

// ---------------------------------------------------------------------------
// Mock TemplateRepository
// ---------------------------------------------------------------------------

type mockTemplateRepository struct {
	inner repository.TemplateRepository

	listSystemFunc   func(ctx context.Context) ([]*model.Template, error)
	listByUserIDFunc func(ctx context.Context, userID string) ([]*model.Template, error)
}

func (m *mockTemplateRepository) ListSystem(ctx context.Context) ([]*model.Template, error) {
	if m.listSystemFunc != nil {
		return m.listSystemFunc(ctx)
	}
	return m.inner.ListSystem(ctx)
}
func (m *mockTemplateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Template, error) {
	if m.listByUserIDFunc != nil {
		return m.listByUserIDFunc(ctx, userID)
	}
	return m.inner.ListByUserID(ctx, userID)
}
func (m *mockTemplateRepository) GetSystemByID(ctx context.Context, id string) (*model.Template, error) {
	return m.inner.GetSystemByID(ctx, id)
}
func (m *mockTemplateRepository) GetUserByID(ctx context.Context, id string) (*model.Template, error) {
	return m.inner.GetUserByID(ctx, id)
}
func (m *mockTemplateRepository) Create(ctx context.Context, t *model.Template) error {
	return m.inner.Create(ctx, t)
}
func (m *mockTemplateRepository) Update(ctx context.Context, t *model.Template) error {
	return m.inner.Update(ctx, t)
}
func (m *mockTemplateRepository) Delete(ctx context.Context, id string) error {
	return m.inner.Delete(ctx, id)
}
