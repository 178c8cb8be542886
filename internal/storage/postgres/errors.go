package postgres

import (
	"errors"
	"fmt"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// mapRepoError translates a driver failure into the domain taxonomy. Unique
// constraint violations surface as duplicates so services can fall back to
// the already-stored copy; everything else is a repository failure.
func mapRepoError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateResource)
	}

	return fmt.Errorf("%s: %w: %s", op, domain.ErrRepository, sanitizeConnError(err))
}
