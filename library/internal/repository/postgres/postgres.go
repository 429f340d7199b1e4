package postgres

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/Astemirdum/lending-service/library/internal/errs"
)

const (
	booksTableName        = `books`
	usersTableName        = `users`
	reservationsTableName = `reservations`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	bookColumns        = []string{"id", "title", "author", "publisher", "genre", "isbn", "pub_date", "reserved", "disabled"}
	userColumns        = []string{"id", "name", "email", "password_hash", "permissions", "disabled"}
	reservationColumns = []string{"id", "book_id", "user_id", "reservation_date", "return_date"}
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// mapErr turns "no row matched" into notFound and a unique violation into a conflict.
func mapErr(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound
	case isUniqueViolation(err):
		return errs.ErrConflict
	}
	return err
}

func returning(cols []string) string {
	return "returning " + strings.Join(cols, ", ")
}
