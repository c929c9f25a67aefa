package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
)

// Коды ошибок PostgreSQL
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// mapError переводит ошибки PostgreSQL в ошибки хранилища
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return ledger.ErrDuplicate
	case codeForeignKeyViolation:
		return ledger.ErrNotFound
	case codeCheckViolation:
		if pgErr.ConstraintName == "users_points_non_negative" {
			return ledger.ErrInsufficientBalance
		}
	}
	return err
}
