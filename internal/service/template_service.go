package service

import (
	"context"
	"log/slog"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/estimate-app/backend/internal/repository"
)

// TemplateList is the template picker content: shared templates first, then
// the caller's own, each ordered by name.
type TemplateList struct {
	System []*model.Template `json:"system"`
	User   []*model.Template `json:"user"`
}

// TemplateService はテンプレートの一覧・適用・ユーザーテンプレート管理
type TemplateService interface {
	List(ctx context.Context, userID string) (*TemplateList, error)
	Draft(ctx context.Context, userID string, kind model.TemplateKind, id string) (*model.EstimateDraft, error)
	Create(ctx context.Context, userID string, in model.TemplateInput) (*model.Template, error)
	Update(ctx context.Context, userID, id string, in model.TemplateInput) (*model.Template, error)
	Delete(ctx context.Context, userID, id string) error
}

// TemplateServiceImpl は TemplateService の実装
type TemplateServiceImpl struct {
	repo repository.TemplateRepository
}

// NewTemplateService は TemplateServiceImpl を生成する
func NewTemplateService(repo repository.TemplateRepository) TemplateService {
	return &TemplateServiceImpl{repo: repo}
}

// List はテンプレート一覧を返す。取得に失敗した側は空で返す（警告ログのみ）
func (s *TemplateServiceImpl) List(ctx context.Context, userID string) (*TemplateList, error) {
	if err := requireUser("template.list", userID); err != nil {
		return nil, err
	}
	out := &TemplateList{System: []*model.Template{}, User: []*model.Template{}}
	if system, err := s.repo.ListSystem(ctx); err != nil {
		slog.Warn("list system templates failed, returning empty", "error", err)
	} else {
		out.System = system
	}
	if user, err := s.repo.ListByUserID(ctx, userID); err != nil {
		slog.Warn("list user templates failed, returning empty", "user_id", userID, "error", err)
	} else {
		out.User = user
	}
	return out, nil
}

// ownedTemplate returns the caller's user template.
func (s *TemplateServiceImpl) ownedTemplate(ctx context.Context, op, userID, id string) (*model.Template, error) {
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	t, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerUserID != userID {
		return nil, apperr.Forbidden(op)
	}
	return t, nil
}

// Draft はテンプレートを適用した見積もり下書きを返す
func (s *TemplateServiceImpl) Draft(ctx context.Context, userID string, kind model.TemplateKind, id string) (*model.EstimateDraft, error) {
	const op = "template.draft"
	var t *model.Template
	var err error
	switch kind {
	case model.TemplateSystem:
		if err := requireUser(op, userID); err != nil {
			return nil, err
		}
		t, err = s.repo.GetSystemByID(ctx, id)
	case model.TemplateUser:
		t, err = s.ownedTemplate(ctx, op, userID, id)
	default:
		return nil, apperr.NotFound(op)
	}
	if err != nil {
		return nil, err
	}
	return model.ApplyTemplate(t)
}

// Create はユーザーテンプレートを作成する
func (s *TemplateServiceImpl) Create(ctx context.Context, userID string, in model.TemplateInput) (*model.Template, error) {
	const op = "template.create"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	if err := in.Validate(op); err != nil {
		return nil, err
	}
	t := &model.Template{Kind: model.TemplateUser, OwnerUserID: userID}
	in.Apply(t)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update はユーザーテンプレートを更新する（所有者のみ）。
// Estimates created from it keep their own copies of the values.
func (s *TemplateServiceImpl) Update(ctx context.Context, userID, id string, in model.TemplateInput) (*model.Template, error) {
	const op = "template.update"
	t, err := s.ownedTemplate(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(op); err != nil {
		return nil, err
	}
	in.Apply(t)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete はユーザーテンプレートを削除する（所有者のみ）
func (s *TemplateServiceImpl) Delete(ctx context.Context, userID, id string) error {
	const op = "template.delete"
	if _, err := s.ownedTemplate(ctx, op, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
