package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"

	"picshare-backend/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func emailTaken(err error) error {
	return apperrors.Wrap(apperrors.KindConflict, "user already registered", err)
}

// pageOffset returns how many rows precede a page. Pages start at 1 and
// anything lower is the first page. ok is false when the page starts past
// any representable offset, which can only be an empty page.
func pageOffset(page, size int) (offset int, ok bool) {
	if size <= 0 {
		return 0, false
	}
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt/size {
		return 0, false
	}
	return (page - 1) * size, true
}
