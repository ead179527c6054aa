package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested record does not exist in the database.
var ErrNotFound = apperr.ErrNotFound

// ErrRevisionConflict is returned by AppendRevision when the stored revision
// count no longer matches the expected previous count.
var ErrRevisionConflict = errors.New("revision count changed concurrently")

// mapError converts a low-level storage failure into the application error
// taxonomy. It is the only place driver errors are inspected.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) || errors.Is(err, ErrRevisionConflict) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(op)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.StorageUnavailable(op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == "revision_logs_estimate_id_used_number_key":
			return ErrRevisionConflict
		case pgErr.Code == "23503":
			return apperr.Validation(op, fmt.Sprintf("%s: references a missing record", pgErr.ColumnName))
		case pgErr.Code == "22P02":
			// invalid_text_representation; reads reject malformed ids up front via checkID
			return apperr.Validation(op, "malformed identifier")
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", pgErr.Code == "57014":
			return apperr.StorageUnavailable(op, err)
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53"):
			return apperr.StorageUnavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.StorageUnavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkID rejects ids that can never exist so that malformed input is a
// NotFound rather than a driver error.
func checkID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound(op)
	}
	return nil
}

// checkOwnerID rejects a caller id that can never own a row. Writes use it
// so that a malformed token subject is refused instead of reaching the
// driver.
func checkOwnerID(op, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return apperr.Forbidden(op)
	}
	return nil
}

// checkRef validates an optional foreign key so that a malformed reference
// reads the same as a missing one.
func checkRef(op, field string, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := uuid.Parse(*id); err != nil {
		return apperr.Validation(op, field+": references a missing record")
	}
	return nil
}
