package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

type ReservationRepository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewReservationRepository(db *pgxpool.Pool, log *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		db:  db,
		log: log.Named("repo.reservations"),
	}
}

// CreateReservation relies on the partial unique index over open reservations: a second
// open row for the same book surfaces as errs.ErrConflict.
func (r *ReservationRepository) CreateReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	query, args, err := qb.Insert(reservationsTableName).
		Columns("id", "book_id", "user_id", "reservation_date").
		Values(uuid.NewString(), bookID, userID, at.UTC()).
		Suffix(returning(reservationColumns)).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args)
}

func (r *ReservationRepository) CloseReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	query, args, err := qb.Update(reservationsTableName).
		Set("return_date", at.UTC()).
		Where(sq.Eq{"book_id": bookID, "user_id": userID, "return_date": nil}).
		Suffix(returning(reservationColumns)).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args)
}

func (r *ReservationRepository) ReopenReservation(ctx context.Context, id string) (model.Reservation, error) {
	query, args, err := qb.Update(reservationsTableName).
		Set("return_date", nil).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"return_date": nil}).
		Suffix(returning(reservationColumns)).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args)
}

func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	query, args, err := qb.Delete(reservationsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	eq := sq.Eq{}
	if filter.BookID != "" {
		eq["book_id"] = filter.BookID
	}
	if filter.UserID != "" {
		eq["user_id"] = filter.UserID
	}
	q := qb.Select(reservationColumns...).From(reservationsTableName)
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	query, args, err := q.OrderBy("reservation_date").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Reservation])
}

func (r *ReservationRepository) one(ctx context.Context, query string, args []any) (model.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Reservation{}, mapErr(err, errs.ErrNotFound)
	}
	res, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return model.Reservation{}, mapErr(err, errs.ErrNotFound)
	}
	return res, nil
}
