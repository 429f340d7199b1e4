package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

type BookRepository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewBookRepository(db *pgxpool.Pool, log *zap.Logger) *BookRepository {
	return &BookRepository{
		db:  db,
		log: log.Named("repo.books"),
	}
}

func (r *BookRepository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	book.ID = uuid.NewString()
	query, args, err := qb.Insert(booksTableName).
		Columns(bookColumns...).
		Values(book.ID, book.Title, book.Author, book.Publisher, book.Genre, book.ISBN, book.PubDate, book.Reserved, book.Disabled).
		Suffix(returning(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args, errs.ErrNotFound)
}

func (r *BookRepository) GetBook(ctx context.Context, id string) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args, errs.ErrNotFound)
}

func (r *BookRepository) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	q := qb.Select(bookColumns...).From(booksTableName)
	eq := sq.Eq{}
	for col, v := range map[string]string{
		"title":     filter.Title,
		"author":    filter.Author,
		"publisher": filter.Publisher,
		"genre":     filter.Genre,
		"isbn":      filter.ISBN,
	} {
		if v != "" {
			eq[col] = v
		}
	}
	if filter.PubDateAt != nil {
		eq["pub_date"] = *filter.PubDateAt
	}
	if filter.Reserved != nil {
		eq["reserved"] = *filter.Reserved
	}
	if filter.Disabled != nil {
		eq["disabled"] = *filter.Disabled
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}

	query, args, err := q.OrderBy("title").ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
}

func (r *BookRepository) UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, error) {
	if upd.Empty() {
		return r.GetBook(ctx, id)
	}
	q := qb.Update(booksTableName).Where(sq.Eq{"id": id})
	if upd.Title != nil {
		q = q.Set("title", *upd.Title)
	}
	if upd.Author != nil {
		q = q.Set("author", *upd.Author)
	}
	if upd.Publisher != nil {
		q = q.Set("publisher", *upd.Publisher)
	}
	if upd.Genre != nil {
		q = q.Set("genre", *upd.Genre)
	}
	if upd.ISBN != nil {
		q = q.Set("isbn", *upd.ISBN)
	}
	if upd.PubDate != nil {
		q = q.Set("pub_date", upd.PubDate.Ptr())
	}

	query, args, err := q.Suffix(returning(bookColumns)).ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args, errs.ErrNotFound)
}

func (r *BookRepository) SetReserved(ctx context.Context, id string, reserved bool) (model.Book, error) {
	cond := sq.Eq{"id": id, "reserved": !reserved}
	if reserved {
		cond["disabled"] = false
	}
	query, args, err := qb.Update(booksTableName).
		Set("reserved", reserved).
		Where(cond).
		Suffix(returning(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args, errs.ErrConflict)
}

func (r *BookRepository) DisableBook(ctx context.Context, id string) error {
	query, args, err := qb.Update(booksTableName).
		Set("disabled", true).
		Where(sq.Eq{"id": id, "reserved": false}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBook(ctx, id); err != nil {
			return err
		}
		return errs.ErrConflict
	}
	return nil
}

func (r *BookRepository) one(ctx context.Context, query string, args []any, notFound error) (model.Book, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, mapErr(err, notFound)
	}
	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return model.Book{}, mapErr(err, notFound)
	}
	return book, nil
}
