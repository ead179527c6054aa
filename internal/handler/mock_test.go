package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/service"
	"github.com/estimate-app/backend/pkg/auth"
)

// ---------------------------------------------------------------------------
// Mock EstimateService
// ---------------------------------------------------------------------------

type mockEstimateService struct {
	createFunc           func(ctx context.Context, userID string, in model.EstimateInput) (*model.Estimate, error)
	getFunc              func(ctx context.Context, userID, id string) (*model.Estimate, error)
	listMineFunc         func(ctx context.Context, userID string) ([]*model.Estimate, error)
	replaceLineItemsFunc func(ctx context.Context, userID, id string, items []model.LineItemInput) (*model.Estimate, error)
	consumeRevisionFunc  func(ctx context.Context, userID, id, memo string) (*model.Estimate, error)
	updatePolicyFunc     func(ctx context.Context, userID, id string, limit int, rate int64) (*model.Estimate, error)
	updateDetailsFunc    func(ctx context.Context, userID, id string, patch model.DetailsPatch) (*model.Estimate, error)
	getSharedFunc        func(ctx context.Context, token string) (*model.ShareView, error)
}

func (m *mockEstimateService) Create(ctx context.Context, userID string, in model.EstimateInput) (*model.Estimate, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, in)
	}
	return &model.Estimate{}, nil
}
func (m *mockEstimateService) Get(ctx context.Context, userID, id string) (*model.Estimate, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, id)
	}
	return &model.Estimate{ID: id, UserID: userID}, nil
}
func (m *mockEstimateService) ListMine(ctx context.Context, userID string) ([]*model.Estimate, error) {
	if m.listMineFunc != nil {
		return m.listMineFunc(ctx, userID)
	}
	return nil, nil
}
func (m *mockEstimateService) ReplaceLineItems(ctx context.Context, userID, id string, items []model.LineItemInput) (*model.Estimate, error) {
	if m.replaceLineItemsFunc != nil {
		return m.replaceLineItemsFunc(ctx, userID, id, items)
	}
	return &model.Estimate{ID: id}, nil
}
func (m *mockEstimateService) ConsumeRevision(ctx context.Context, userID, id, memo string) (*model.Estimate, error) {
	if m.consumeRevisionFunc != nil {
		return m.consumeRevisionFunc(ctx, userID, id, memo)
	}
	return &model.Estimate{ID: id}, nil
}
func (m *mockEstimateService) UpdatePolicy(ctx context.Context, userID, id string, limit int, rate int64) (*model.Estimate, error) {
	if m.updatePolicyFunc != nil {
		return m.updatePolicyFunc(ctx, userID, id, limit, rate)
	}
	return &model.Estimate{ID: id}, nil
}
func (m *mockEstimateService) UpdateDetails(ctx context.Context, userID, id string, patch model.DetailsPatch) (*model.Estimate, error) {
	if m.updateDetailsFunc != nil {
		return m.updateDetailsFunc(ctx, userID, id, patch)
	}
	return &model.Estimate{ID: id}, nil
}
func (m *mockEstimateService) GetShared(ctx context.Context, token string) (*model.ShareView, error) {
	if m.getSharedFunc != nil {
		return m.getSharedFunc(ctx, token)
	}
	return &model.ShareView{}, nil
}

// ---------------------------------------------------------------------------
// Mock TemplateService
// ---------------------------------------------------------------------------

type mockTemplateService struct {
	listFunc   func(ctx context.Context, userID string) (*service.TemplateList, error)
	draftFunc  func(ctx context.Context, userID string, kind model.TemplateKind, id string) (*model.EstimateDraft, error)
	createFunc func(ctx context.Context, userID string, in model.TemplateInput) (*model.Template, error)
	updateFunc func(ctx context.Context, userID, id string, in model.TemplateInput) (*model.Template, error)
	deleteFunc func(ctx context.Context, userID, id string) error
}

func (m *mockTemplateService) List(ctx context.Context, userID string) (*service.TemplateList, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return &service.TemplateList{System: []*model.Template{}, User: []*model.Template{}}, nil
}
func (m *mockTemplateService) Draft(ctx context.Context, userID string, kind model.TemplateKind, id string) (*model.EstimateDraft, error) {
	if m.draftFunc != nil {
		return m.draftFunc(ctx, userID, kind, id)
	}
	return &model.EstimateDraft{}, nil
}
func (m *mockTemplateService) Create(ctx context.Context, userID string, in model.TemplateInput) (*model.Template, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, in)
	}
	return &model.Template{}, nil
}
func (m *mockTemplateService) Update(ctx context.Context, userID, id string, in model.TemplateInput) (*model.Template, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, userID, id, in)
	}
	return &model.Template{ID: id}, nil
}
func (m *mockTemplateService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mock DB
// ---------------------------------------------------------------------------

type mockDB struct {
	pingFunc func(ctx context.Context) error
}

func (m *mockDB) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

// userAuthRequest builds a request whose context carries user-1.
func userAuthRequest(method, url, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, url, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, url, nil)
	}
	r.Header.Set("Content-Type", "application/json")
	return r.WithContext(auth.WithUserID(r.Context(), "user-1"))
}

// withPath sets path values the way ServeMux would.
func withPath(r *http.Request, kv ...string) *http.Request {
	for i := 0; i+1 < len(kv); i += 2 {
		r.SetPathValue(kv[i], kv[i+1])
	}
	return r
}
