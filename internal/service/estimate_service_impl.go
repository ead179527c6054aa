package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/repository"
)

// maxRevisionAttempts bounds re-evaluation when another writer consumed a
// revision between our read and our write.
const maxRevisionAttempts = 3

// EstimateServiceImpl は EstimateService の実装
type EstimateServiceImpl struct {
	repo      repository.EstimateRepository
	templates repository.TemplateRepository
	policy    model.OveragePolicy

	now      func() time.Time
	newToken func() (string, error)
}

// NewEstimateService は EstimateServiceImpl を生成する
func NewEstimateService(repo repository.EstimateRepository, templates repository.TemplateRepository, policy model.OveragePolicy) EstimateService {
	return &EstimateServiceImpl{
		repo:      repo,
		templates: templates,
		policy:    policy,
		now:       time.Now,
		newToken:  NewShareToken,
	}
}

func requireUser(op, userID string) error {
	if userID == "" {
		return apperr.Forbidden(op)
	}
	return nil
}

// load reads the estimate, checks ownership and verifies its invariants.
func (s *EstimateServiceImpl) load(ctx context.Context, op, userID, id string) (*model.Estimate, error) {
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, apperr.Forbidden(op)
	}
	if err := e.Verify(); err != nil {
		slog.Error("estimate failed verification", "estimate_id", id, "error", err)
		return nil, err
	}
	return e, nil
}

// Create は見積もりを作成する
func (s *EstimateServiceImpl) Create(ctx context.Context, userID string, in model.EstimateInput) (*model.Estimate, error) {
	const op = "estimate.create"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	if in.TemplateID != nil {
		t, err := s.templates.GetUserByID(ctx, *in.TemplateID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return nil, apperr.Validation(op, "template_id: unknown template")
		case err != nil:
			return nil, err
		case t.OwnerUserID != userID:
			return nil, apperr.Forbidden(op)
		}
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	e, err := model.NewEstimate(userID, in, token)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("estimate created", "estimate_id", e.ID, "user_id", userID, "line_items", len(e.LineItems))
	return e, nil
}

// Get は所有者の見積もりを返す
func (s *EstimateServiceImpl) Get(ctx context.Context, userID, id string) (*model.Estimate, error) {
	return s.load(ctx, "estimate.get", userID, id)
}

// ListMine はユーザーの見積もり一覧を新しい順に返す
func (s *EstimateServiceImpl) ListMine(ctx context.Context, userID string) ([]*model.Estimate, error) {
	const op = "estimate.list"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		if err := e.VerifyHeader(); err != nil {
			slog.Error("estimate failed verification", "estimate_id", e.ID, "error", err)
			return nil, err
		}
	}
	return list, nil
}

// ReplaceLineItems は明細を丸ごと置き換え、小計・合計を再計算する
func (s *EstimateServiceImpl) ReplaceLineItems(ctx context.Context, userID, id string, inputs []model.LineItemInput) (*model.Estimate, error) {
	const op = "estimate.replace_line_items"
	if _, err := s.load(ctx, op, userID, id); err != nil {
		return nil, err
	}
	items, err := model.ValidateLineItems(inputs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceLineItems(ctx, id, items); err != nil {
		return nil, err
	}
	return s.load(ctx, op, userID, id)
}

// ConsumeRevision は修正を1回消化する。
// The write is guarded by the count that was read; when another writer got
// there first the ledger is re-evaluated against the fresh state.
func (s *EstimateServiceImpl) ConsumeRevision(ctx context.Context, userID, id, memo string) (*model.Estimate, error) {
	const op = "estimate.consume_revision"
	for attempt := 1; ; attempt++ {
		e, err := s.load(ctx, op, userID, id)
		if err != nil {
			return nil, err
		}
		entry, next, err := e.Ledger().Consume(memo, s.policy, s.now())
		if err != nil {
			return nil, err
		}

		err = s.repo.AppendRevision(ctx, id, entry, next.Used)
		if errors.Is(err, repository.ErrRevisionConflict) {
			if attempt >= maxRevisionAttempts {
				return nil, apperr.StorageUnavailable(op, err)
			}
			slog.Info("revision count changed concurrently, retrying", "estimate_id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		if entry.OverageCharge > 0 {
			slog.Info("revision consumed past limit", "estimate_id", id, "used", next.Used, "limit", next.Limit, "overage_charge", entry.OverageCharge)
		}
		return s.load(ctx, op, userID, id)
	}
}

// UpdatePolicy は修正回数上限と追加修正単価を更新する
func (s *EstimateServiceImpl) UpdatePolicy(ctx context.Context, userID, id string, revisionLimit int, extraRevisionRate int64) (*model.Estimate, error) {
	const op = "estimate.update_policy"
	if _, err := s.load(ctx, op, userID, id); err != nil {
		return nil, err
	}
	if err := model.ValidatePolicy(revisionLimit, extraRevisionRate); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePolicy(ctx, id, revisionLimit, extraRevisionRate); err != nil {
		return nil, err
	}
	return s.load(ctx, op, userID, id)
}

// UpdateDetails はタイトル・備考・取引条件・スケジュールを更新する
func (s *EstimateServiceImpl) UpdateDetails(ctx context.Context, userID, id string, patch model.DetailsPatch) (*model.Estimate, error) {
	const op = "estimate.update_details"
	e, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if err := e.ApplyDetails(patch); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDetails(ctx, id, e.Title, e.Details()); err != nil {
		return nil, err
	}
	return s.load(ctx, op, userID, id)
}

// GetShared は共有トークンで見積もりを取得し、クライアント向けに射影する
func (s *EstimateServiceImpl) GetShared(ctx context.Context, token string) (*model.ShareView, error) {
	const op = "estimate.get_shared"
	if !ValidShareToken(token) {
		return nil, apperr.NotFound(op)
	}
	e, err := s.repo.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.Verify(); err != nil {
		slog.Error("shared estimate failed verification", "estimate_id", e.ID, "error", err)
		return nil, err
	}
	return model.ProjectShareView(e), nil
}
