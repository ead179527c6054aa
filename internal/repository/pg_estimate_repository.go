package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgEstimateRepository は EstimateRepository の PostgreSQL 実装
type PgEstimateRepository struct {
	pool *pgxpool.Pool
}

// NewPgEstimateRepository は PgEstimateRepository を生成する
func NewPgEstimateRepository(pool *pgxpool.Pool) *PgEstimateRepository {
	return &PgEstimateRepository{pool: pool}
}

const estimateColumns = `id, user_id, template_id, title, revision_limit, extra_revision_rate, revisions_used,
	subtotal, total, share_token, notes, terms_and_conditions,
	estimated_start_date, estimated_duration_days, estimated_end_date, created_at, updated_at`

func scanEstimate(row pgx.Row) (*model.Estimate, error) {
	var e model.Estimate
	var start, end *time.Time
	if err := row.Scan(
		&e.ID, &e.UserID, &e.TemplateID, &e.Title, &e.RevisionLimit, &e.ExtraRevisionRate, &e.RevisionsUsed,
		&e.Subtotal, &e.Total, &e.ShareToken, &e.Notes, &e.TermsAndConditions,
		&start, &e.EstimatedDurationDays, &end, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.EstimatedStartDate = toDate(start)
	e.EstimatedEndDate = toDate(end)
	return &e, nil
}

func toDate(t *time.Time) *model.Date {
	if t == nil {
		return nil
	}
	d := model.NewDate(*t)
	return &d
}

func fromDate(d *model.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// Insert は見積もりと明細を1トランザクションで保存する
func (r *PgEstimateRepository) Insert(ctx context.Context, e *model.Estimate) error {
	const op = "estimate.insert"
	if err := checkOwnerID(op, e.UserID); err != nil {
		return err
	}
	if err := checkRef(op, "template_id", e.TemplateID); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError(op, err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO estimates (user_id, template_id, title, revision_limit, extra_revision_rate, revisions_used,
			subtotal, total, share_token, notes, terms_and_conditions,
			estimated_start_date, estimated_duration_days, estimated_end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`,
		e.UserID, e.TemplateID, e.Title, e.RevisionLimit, e.ExtraRevisionRate, e.RevisionsUsed,
		e.Subtotal, e.Total, e.ShareToken, e.Notes, e.TermsAndConditions,
		fromDate(e.EstimatedStartDate), e.EstimatedDurationDays, fromDate(e.EstimatedEndDate),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return mapError(op, err)
	}

	if err := insertLineItems(ctx, tx, e.ID, e.LineItems); err != nil {
		return mapError(op, err)
	}
	return mapError(op, tx.Commit(ctx))
}

func insertLineItems(ctx context.Context, tx pgx.Tx, estimateID string, items []*model.LineItem) error {
	for i, item := range items {
		item.EstimateID = estimateID
		item.OrderIndex = i
		if err := tx.QueryRow(ctx,
			`INSERT INTO line_items (estimate_id, name, hours, hourly_rate, memo, amount, order_index)
			 VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			estimateID, item.Name, item.Hours.String(), item.HourlyRate, item.Memo, item.Amount, i,
		).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

// GetByID は明細と修正履歴を含む見積もりを返す
func (r *PgEstimateRepository) GetByID(ctx context.Context, id string) (*model.Estimate, error) {
	const op = "estimate.get"
	if err := checkID(op, id); err != nil {
		return nil, err
	}
	return r.getOne(ctx, op, `SELECT `+estimateColumns+` FROM estimates WHERE id = $1`, id)
}

// GetByShareToken は共有トークンで見積もりを返す
func (r *PgEstimateRepository) GetByShareToken(ctx context.Context, token string) (*model.Estimate, error) {
	return r.getOne(ctx, "estimate.get_shared", `SELECT `+estimateColumns+` FROM estimates WHERE share_token = $1`, token)
}

func (r *PgEstimateRepository) getOne(ctx context.Context, op, query string, arg any) (*model.Estimate, error) {
	tx, err := r.pool.BeginTx(ctx, snapshot)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer tx.Rollback(ctx)

	e, err := scanEstimate(tx.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(op, err)
	}
	if e.LineItems, err = listLineItems(ctx, tx, e.ID); err != nil {
		return nil, mapError(op, err)
	}
	if e.RevisionLogs, err = listRevisionLogs(ctx, tx, e.ID); err != nil {
		return nil, mapError(op, err)
	}
	return e, mapError(op, tx.Commit(ctx))
}

func listLineItems(ctx context.Context, tx pgx.Tx, estimateID string) ([]*model.LineItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, estimate_id, name, hours::text, hourly_rate, memo, amount, order_index, created_at, updated_at
		 FROM line_items WHERE estimate_id = $1 ORDER BY order_index`,
		estimateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*model.LineItem{}
	for rows.Next() {
		var item model.LineItem
		var hours string
		if err := rows.Scan(
			&item.ID, &item.EstimateID, &item.Name, &hours, &item.HourlyRate,
			&item.Memo, &item.Amount, &item.OrderIndex, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if item.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, apperr.Corruption("estimate.scan_line_item", fmt.Sprintf("line item %s: hours %q", item.ID, hours))
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func listRevisionLogs(ctx context.Context, tx pgx.Tx, estimateID string) ([]*model.RevisionLog, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, estimate_id, used_number, memo, overage_charge, created_at
		 FROM revision_logs WHERE estimate_id = $1 ORDER BY used_number`,
		estimateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.RevisionLog{}
	for rows.Next() {
		var l model.RevisionLog
		if err := rows.Scan(&l.ID, &l.EstimateID, &l.UsedNumber, &l.Memo, &l.OverageCharge, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// ListByUserID はユーザーの見積もり一覧を作成日時の降順で返す（明細なし）
func (r *PgEstimateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Estimate, error) {
	const op = "estimate.list"
	if err := checkID(op, userID); err != nil {
		return []*model.Estimate{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+estimateColumns+` FROM estimates WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	list := []*model.Estimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		list = append(list, e)
	}
	return list, mapError(op, rows.Err())
}

// ReplaceLineItems は既存明細を全削除して items を挿入し、小計・合計を更新する
func (r *PgEstimateRepository) ReplaceLineItems(ctx context.Context, id string, items []*model.LineItem) error {
	const op = "estimate.replace_line_items"
	if err := checkID(op, id); err != nil {
		return err
	}
	subtotal, err := model.ComputeSubtotal(items)
	if err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError(op, err)
	}
	defer tx.Rollback(ctx)

	// the UPDATE comes first so the estimate row stays locked for the rest of the tx
	tag, err := tx.Exec(ctx,
		`UPDATE estimates SET subtotal=$1, total=$2, updated_at=NOW() WHERE id=$3`,
		subtotal, model.ComputeTotal(subtotal), id,
	)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(op)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE estimate_id=$1`, id); err != nil {
		return mapError(op, err)
	}
	if err := insertLineItems(ctx, tx, id, items); err != nil {
		return mapError(op, err)
	}
	return mapError(op, tx.Commit(ctx))
}

// AppendRevision は修正回数を進めて履歴を追加する。件数が期待値と異なる場合は ErrRevisionConflict
func (r *PgEstimateRepository) AppendRevision(ctx context.Context, id string, entry *model.RevisionLog, newUsedCount int) error {
	const op = "estimate.append_revision"
	if err := checkID(op, id); err != nil {
		return err
	}
	if entry.UsedNumber != newUsedCount {
		return fmt.Errorf("%s: entry used_number %d does not match new count %d", op, entry.UsedNumber, newUsedCount)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError(op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE estimates SET revisions_used=$1, updated_at=NOW() WHERE id=$2 AND revisions_used=$3`,
		newUsedCount, id, newUsedCount-1,
	)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM estimates WHERE id=$1`, id).Scan(&exists); err != nil {
			return mapError(op, err)
		}
		return ErrRevisionConflict
	}

	entry.EstimateID = id
	if err := tx.QueryRow(ctx,
		`INSERT INTO revision_logs (estimate_id, used_number, memo, overage_charge, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		id, entry.UsedNumber, entry.Memo, entry.OverageCharge, entry.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return mapError(op, err)
	}
	return mapError(op, tx.Commit(ctx))
}

// UpdatePolicy は修正回数上限と追加修正単価を更新する。revisions_used は変更しない
func (r *PgEstimateRepository) UpdatePolicy(ctx context.Context, id string, revisionLimit int, extraRevisionRate int64) error {
	const op = "estimate.update_policy"
	if err := checkID(op, id); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE estimates SET revision_limit=$1, extra_revision_rate=$2, updated_at=NOW() WHERE id=$3`,
		revisionLimit, extraRevisionRate, id,
	)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(op)
	}
	return nil
}

// UpdateDetails はタイトル・備考・条件・スケジュールを更新する
func (r *PgEstimateRepository) UpdateDetails(ctx context.Context, id string, title string, d model.EstimateDetails) error {
	const op = "estimate.update_details"
	if err := checkID(op, id); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE estimates SET title=$1, notes=$2, terms_and_conditions=$3,
			estimated_start_date=$4, estimated_duration_days=$5, estimated_end_date=$6, updated_at=NOW()
		 WHERE id=$7`,
		title, d.Notes, d.TermsAndConditions,
		fromDate(d.EstimatedStartDate), d.EstimatedDurationDays, fromDate(d.EndDate()), id,
	)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(op)
	}
	return nil
}
