package repository

import (
	"context"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTemplateRepository は TemplateRepository の PostgreSQL 実装
type PgTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewPgTemplateRepository は PgTemplateRepository を生成する
func NewPgTemplateRepository(pool *pgxpool.Pool) *PgTemplateRepository {
	return &PgTemplateRepository{pool: pool}
}

const (
	systemTemplateSelect = `SELECT id, name, default_hourly_rate, default_revision_limit, default_extra_revision_rate, created_at, updated_at
		FROM system_templates`
	userTemplateSelect = `SELECT id, user_id, name, default_hourly_rate, default_revision_limit, default_extra_revision_rate, created_at, updated_at
		FROM templates`
)

func scanSystemTemplate(row pgx.Row) (*model.Template, error) {
	t := model.Template{Kind: model.TemplateSystem}
	if err := row.Scan(&t.ID, &t.Name, &t.DefaultHourlyRate, &t.DefaultRevisionLimit, &t.DefaultExtraRevisionRate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanUserTemplate(row pgx.Row) (*model.Template, error) {
	t := model.Template{Kind: model.TemplateUser}
	if err := row.Scan(&t.ID, &t.OwnerUserID, &t.Name, &t.DefaultHourlyRate, &t.DefaultRevisionLimit, &t.DefaultExtraRevisionRate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgTemplateRepository) list(ctx context.Context, op string, scan func(pgx.Row) (*model.Template, error), query string, args ...any) ([]*model.Template, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	list := []*model.Template{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		list = append(list, t)
	}
	return list, mapError(op, rows.Err())
}

// ListSystem はシステムテンプレートを名前順で返す
func (r *PgTemplateRepository) ListSystem(ctx context.Context) ([]*model.Template, error) {
	return r.list(ctx, "template.list_system", scanSystemTemplate, systemTemplateSelect+` ORDER BY name`)
}

// ListByUserID はユーザーテンプレートを名前順で返す
func (r *PgTemplateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Template, error) {
	if checkID("template.list_user", userID) != nil {
		return []*model.Template{}, nil
	}
	return r.list(ctx, "template.list_user", scanUserTemplate, userTemplateSelect+` WHERE user_id = $1 ORDER BY name`, userID)
}

func (r *PgTemplateRepository) GetSystemByID(ctx context.Context, id string) (*model.Template, error) {
	const op = "template.get_system"
	if err := checkID(op, id); err != nil {
		return nil, err
	}
	t, err := scanSystemTemplate(r.pool.QueryRow(ctx, systemTemplateSelect+` WHERE id = $1`, id))
	return t, mapError(op, err)
}

func (r *PgTemplateRepository) GetUserByID(ctx context.Context, id string) (*model.Template, error) {
	const op = "template.get_user"
	if err := checkID(op, id); err != nil {
		return nil, err
	}
	t, err := scanUserTemplate(r.pool.QueryRow(ctx, userTemplateSelect+` WHERE id = $1`, id))
	return t, mapError(op, err)
}

// Create はユーザーテンプレートを作成する
func (r *PgTemplateRepository) Create(ctx context.Context, t *model.Template) error {
	const op = "template.create"
	if err := checkOwnerID(op, t.OwnerUserID); err != nil {
		return err
	}
	return mapError(op, r.pool.QueryRow(ctx,
		`INSERT INTO templates (user_id, name, default_hourly_rate, default_revision_limit, default_extra_revision_rate)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		t.OwnerUserID, t.Name, t.DefaultHourlyRate, t.DefaultRevisionLimit, t.DefaultExtraRevisionRate,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt))
}

// Update はユーザーテンプレートを更新する
func (r *PgTemplateRepository) Update(ctx context.Context, t *model.Template) error {
	const op = "template.update"
	if err := checkID(op, t.ID); err != nil {
		return err
	}
	return mapError(op, r.pool.QueryRow(ctx,
		`UPDATE templates SET name=$1, default_hourly_rate=$2, default_revision_limit=$3, default_extra_revision_rate=$4, updated_at=NOW()
		 WHERE id=$5
		 RETURNING updated_at`,
		t.Name, t.DefaultHourlyRate, t.DefaultRevisionLimit, t.DefaultExtraRevisionRate, t.ID,
	).Scan(&t.UpdatedAt))
}

// Delete はユーザーテンプレートを削除する。参照している見積もりの template_id は NULL になる
func (r *PgTemplateRepository) Delete(ctx context.Context, id string) error {
	const op = "template.delete"
	if err := checkID(op, id); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(op)
	}
	return nil
}
