package postgres

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/vedran77/pulse/internal/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// wrap annotates err with op and translates constraint violations into the
// repository sentinels.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Wrap(repository.ErrConflict, op+": "+pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return errors.Wrap(repository.ErrReferenceMissing, op+": "+pgErr.ConstraintName)
		}
	}
	return errors.Wrap(err, op)
}
