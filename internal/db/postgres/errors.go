package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/routedex/internal/db"
)

// SQLSTATE codes classified into db sentinels.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
)

// Wrap annotates err with op and classifies driver errors into db sentinels,
// so callers can use errors.Is(err, db.ErrUniqueViolation) and friends.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return err
	}
	return &db.Error{Op: op, Err: classify(err)}
}

func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", db.ErrNoRows, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", db.ErrUniqueViolation, pgErr.Detail)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", db.ErrForeignKeyViolation, pgErr.Detail)
	case codeSerializationFailure:
		return fmt.Errorf("%w: %w", db.ErrSerialization, err)
	default:
		return err
	}
}
