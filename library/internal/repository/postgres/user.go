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

type UserRepository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, log *zap.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.Named("repo.users"),
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	user.ID = uuid.NewString()
	if user.Permissions == nil {
		user.Permissions = model.Permissions{}
	}
	query, args, err := qb.Insert(usersTableName).
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Email, user.Password, user.Permissions, user.Disabled).
		Suffix(returning(userColumns)).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args)
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getBy(ctx, sq.Eq{"email": email})
}

func (r *UserRepository) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (model.User, error) {
	if upd.Empty() {
		return r.GetUser(ctx, id)
	}
	q := qb.Update(usersTableName).Where(sq.Eq{"id": id})
	if upd.Name != nil {
		q = q.Set("name", *upd.Name)
	}
	if upd.Email != nil {
		q = q.Set("email", *upd.Email)
	}
	if upd.Password != nil {
		q = q.Set("password_hash", *upd.Password)
	}
	if upd.Permissions != nil {
		q = q.Set("permissions", upd.Permissions)
	}
	query, args, err := q.Suffix(returning(userColumns)).ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args)
}

func (r *UserRepository) DisableUser(ctx context.Context, id string) error {
	query, args, err := qb.Update(usersTableName).
		Set("disabled", true).
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

func (r *UserRepository) getBy(ctx context.Context, where sq.Eq) (model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args)
}

func (r *UserRepository) one(ctx context.Context, query string, args []any) (model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.User{}, mapErr(err, errs.ErrNotFound)
	}
	user, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return model.User{}, mapErr(err, errs.ErrNotFound)
	}
	return user, nil
}
