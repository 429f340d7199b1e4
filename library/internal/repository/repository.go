package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/repository/mongo"
	"github.com/Astemirdum/lending-service/library/internal/repository/postgres"
	"github.com/Astemirdum/lending-service/library/migrations"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
	pg "github.com/Astemirdum/lending-service/pkg/postgres"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type BookRepository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, error)
	// SetReserved flips the flag only when it currently holds !reserved (and, when reserving,
	// the book is enabled). errs.ErrConflict reports that the condition did not match.
	SetReserved(ctx context.Context, id string, reserved bool) (model.Book, error)
	// DisableBook disables a book that is not reserved. errs.ErrConflict when it is.
	DisableBook(ctx context.Context, id string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (model.User, error)
	DisableUser(ctx context.Context, id string) error
}

type ReservationRepository interface {
	CreateReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error)
	// CloseReservation sets the return date on the open reservation of (bookID, userID).
	// errs.ErrNotFound when there is none.
	CloseReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error)
	ReopenReservation(ctx context.Context, id string) (model.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
}

type Repository struct {
	Books        BookRepository
	Users        UserRepository
	Reservations ReservationRepository

	close func()
}

func (r *Repository) Close() {
	if r.close != nil {
		r.close()
	}
}

// NewRepository connects the configured storage driver.
func NewRepository(ctx context.Context, cfg config.Storage, log *zap.Logger) (*Repository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := pg.NewPostgresDB(ctx, &cfg.Postgres, migrations.MigrationFiles)
		if err != nil {
			return nil, errors.Wrap(err, "postgres init")
		}
		return &Repository{
			Books:        postgres.NewBookRepository(db, log),
			Users:        postgres.NewUserRepository(db, log),
			Reservations: postgres.NewReservationRepository(db, log),
			close:        db.Close,
		}, nil
	case config.DriverMongo:
		db, err := mongodb.NewMongoDB(ctx, cfg.Mongo)
		if err != nil {
			return nil, errors.Wrap(err, "mongo init")
		}
		if err = mongo.EnsureIndexes(ctx, db); err != nil {
			_ = db.Disconnect(context.Background())
			return nil, errors.Wrap(err, "mongo indexes")
		}
		return &Repository{
			Books:        mongo.NewBookRepository(db, log),
			Users:        mongo.NewUserRepository(db, log),
			Reservations: mongo.NewReservationRepository(db, log),
			close: func() {
				if err := db.Disconnect(context.Background()); err != nil {
					log.Error("mongo disconnect", zap.Error(err))
				}
			},
		}, nil
	}
	return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
}
