package repository

import (
	"context"

	"github.com/estimate-app/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// EstimateRepository は見積もり永続化のインターフェース。
// Every write is one atomic unit; errors are *apperr.Error values.
type EstimateRepository interface {
	// Insert stores e and its line items and fills in the assigned ids and timestamps.
	Insert(ctx context.Context, e *model.Estimate) error
	// GetByID returns the estimate with line items and revision logs read from one snapshot.
	GetByID(ctx context.Context, id string) (*model.Estimate, error)
	GetByShareToken(ctx context.Context, token string) (*model.Estimate, error)
	// ListByUserID returns estimate headers only, newest first.
	ListByUserID(ctx context.Context, userID string) ([]*model.Estimate, error)
	// ReplaceLineItems deletes the current items, inserts items with order
	// indexes 0..n-1 and stores the recomputed subtotal and total.
	ReplaceLineItems(ctx context.Context, id string, items []*model.LineItem) error
	// AppendRevision sets revisions_used to newUsedCount and appends entry,
	// only if the stored count is still newUsedCount-1. Otherwise it returns
	// ErrRevisionConflict.
	AppendRevision(ctx context.Context, id string, entry *model.RevisionLog, newUsedCount int) error
	UpdatePolicy(ctx context.Context, id string, revisionLimit int, extraRevisionRate int64) error
	UpdateDetails(ctx context.Context, id string, title string, details model.EstimateDetails) error
}

// TemplateRepository はテンプレート永続化のインターフェース。
// System templates are read-only here; they are seeded by migration.
type TemplateRepository interface {
	ListSystem(ctx context.Context) ([]*model.Template, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.Template, error)
	GetSystemByID(ctx context.Context, id string) (*model.Template, error)
	GetUserByID(ctx context.Context, id string) (*model.Template, error)
	Create(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t *model.Template) error
	Delete(ctx context.Context, id string) error
}
