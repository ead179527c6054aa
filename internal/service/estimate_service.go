package service

import (
	"context"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
)

// ErrForbidden is returned when the caller does not own the resource or no
// caller identity was supplied.
var ErrForbidden = apperr.ErrForbidden

// EstimateService は見積もりに関するビジネスロジックのインターフェース。
// Every owner operation takes the caller's user id explicitly.
type EstimateService interface {
	Create(ctx context.Context, userID string, in model.EstimateInput) (*model.Estimate, error)
	Get(ctx context.Context, userID, id string) (*model.Estimate, error)
	ListMine(ctx context.Context, userID string) ([]*model.Estimate, error)
	ReplaceLineItems(ctx context.Context, userID, id string, items []model.LineItemInput) (*model.Estimate, error)
	ConsumeRevision(ctx context.Context, userID, id, memo string) (*model.Estimate, error)
	UpdatePolicy(ctx context.Context, userID, id string, revisionLimit int, extraRevisionRate int64) (*model.Estimate, error)
	UpdateDetails(ctx context.Context, userID, id string, patch model.DetailsPatch) (*model.Estimate, error)
	// GetShared is the anonymous read path keyed by share token.
	GetShared(ctx context.Context, token string) (*model.ShareView, error)
}
