package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/queue"
	"github.com/Astemirdum/lending-service/library/internal/repository"
)

type TokenIssuer interface {
	Issue(user model.User) (string, time.Time, error)
}

type Service struct {
	log          *zap.Logger
	books        repository.BookRepository
	users        repository.UserRepository
	reservations repository.ReservationRepository
	issuer       TokenIssuer
	publisher    queue.Publisher

	opTimeout     time.Duration
	insertRetries int
	insertBackoff time.Duration
	bcryptCost    int
	now           func() time.Time
}

func NewService(repo *repository.Repository, issuer TokenIssuer, publisher queue.Publisher, cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		log:           log.Named("service"),
		books:         repo.Books,
		users:         repo.Users,
		reservations:  repo.Reservations,
		issuer:        issuer,
		publisher:     publisher,
		opTimeout:     cfg.Reservation.OpTimeout,
		insertRetries: cfg.Reservation.InsertRetries,
		insertBackoff: cfg.Reservation.InsertBackoff,
		bcryptCost:    cfg.Auth.BcryptCost,
		now:           time.Now,
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
