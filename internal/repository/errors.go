package repository

import (
	"errors"
	"fmt"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps driver errors onto the domain error kinds. what names the
// entity for the message.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s already exists: %w", what, domain.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s references a missing row: %w", what, domain.ErrNotFound)
		case pgCheckViolation:
			return fmt.Errorf("%s violates %s: %w", what, pgErr.ConstraintName, domain.ErrValidation)
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
