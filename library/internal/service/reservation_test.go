package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/repository"

	queue_mocks "github.com/Astemirdum/lending-service/library/internal/queue/mocks"
	repo_mocks "github.com/Astemirdum/lending-service/library/internal/repository/mocks"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type serviceMocks struct {
	books        *repo_mocks.MockBookRepository
	users        *repo_mocks.MockUserRepository
	reservations *repo_mocks.MockReservationRepository
	publisher    *queue_mocks.MockPublisher
}

func newMockedService(t *testing.T) (*Service, serviceMocks) {
	c := gomock.NewController(t)
	m := serviceMocks{
		books:        repo_mocks.NewMockBookRepository(c),
		users:        repo_mocks.NewMockUserRepository(c),
		reservations: repo_mocks.NewMockReservationRepository(c),
		publisher:    queue_mocks.NewMockPublisher(c),
	}
	cfg := &config.Config{
		Reservation: config.Reservation{OpTimeout: 50 * time.Millisecond, InsertRetries: 2, InsertBackoff: time.Millisecond},
		Auth:        config.Auth{BcryptCost: 4},
	}
	svc := NewService(&repository.Repository{
		Books:        m.books,
		Users:        m.users,
		Reservations: m.reservations,
	}, nil, m.publisher, cfg, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

func expectPark(m serviceMocks, kind model.CompensationKind) {
	m.publisher.EXPECT().Park(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c model.Compensation) error {
			if c.Kind != kind {
				return errors.Errorf("parked %s, want %s", c.Kind, kind)
			}
			return nil
		})
}

func TestService_Reserve(t *testing.T) {
	t.Parallel()
	const (
		bookID = "b1"
		userID = "u1"
	)
	available := model.Book{ID: bookID, Title: "Dune", Author: "Herbert"}
	reserved := available
	reserved.Reserved = true
	opened := model.Reservation{ID: "r1", BookID: bookID, UserID: userID, ReservationDate: fixedNow}
	dbDown := errors.New("db down")

	type mockBehavior func(m serviceMocks)
	tests := []struct {
		name         string
		mockBehavior mockBehavior
		want         model.ReservationResult
		wantErr      error
	}{
		{
			name: "ok",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(opened, nil)
				m.publisher.EXPECT().Publish(gomock.Any(), model.ReservationEvent{
					Type:          model.EventBookReserved,
					BookID:        bookID,
					UserID:        userID,
					ReservationID: "r1",
					Timestamp:     fixedNow,
				}).Return(nil)
			},
			want: model.ReservationResult{Book: reserved, Reservation: opened},
		},
		{
			name: "publish failure does not fail the reservation",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(opened, nil)
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
			},
			want: model.ReservationResult{Book: reserved, Reservation: opened},
		},
		{
			name: "not found",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(model.Book{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "disabled",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(model.Book{ID: bookID, Disabled: true}, nil)
			},
			wantErr: errs.ErrDisabled,
		},
		{
			name: "already reserved",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "lost race removes the inserted reservation",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(model.Book{}, errs.ErrConflict)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(opened, nil)
				m.reservations.EXPECT().DeleteReservation(gomock.Any(), "r1").Return(nil)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "insert conflict is retried while the flag is held",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				gomock.InOrder(
					m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(model.Reservation{}, errs.ErrConflict),
					m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(opened, nil),
				)
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			},
			want: model.ReservationResult{Book: reserved, Reservation: opened},
		},
		{
			name: "insert conflict after retries releases the book",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).
					Return(model.Reservation{}, errs.ErrConflict).Times(3)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(available, nil)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "insert failure releases the book",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(model.Reservation{}, dbDown)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(available, nil)
			},
			wantErr: dbDown,
		},
		{
			name: "both halves fail without compensation",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(model.Book{}, errs.ErrConflict)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(model.Reservation{}, dbDown)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "failed compensation is parked",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(model.Reservation{}, dbDown)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(model.Book{}, dbDown)
				expectPark(m, model.CompensateReleaseBook)
			},
			wantErr: dbDown,
		},
		{
			name: "timed out flag is a failed half",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).
					DoAndReturn(func(ctx context.Context, _ string, _ bool) (model.Book, error) {
						<-ctx.Done()
						return model.Book{}, ctx.Err()
					})
				m.reservations.EXPECT().CreateReservation(gomock.Any(), bookID, userID, fixedNow).Return(opened, nil)
				m.reservations.EXPECT().DeleteReservation(gomock.Any(), "r1").Return(nil)
			},
			wantErr: context.DeadlineExceeded,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, m := newMockedService(t)
			tt.mockBehavior(m)

			got, err := svc.Reserve(context.Background(), bookID, userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_Return(t *testing.T) {
	t.Parallel()
	const (
		bookID = "b1"
		userID = "u1"
	)
	returnedAt := fixedNow.Add(48 * time.Hour)
	available := model.Book{ID: bookID, Title: "Dune", Author: "Herbert"}
	reserved := available
	reserved.Reserved = true
	closed := model.Reservation{ID: "r1", BookID: bookID, UserID: userID, ReservationDate: fixedNow, ReturnDate: &returnedAt}
	held := []model.Reservation{{ID: "r1", BookID: bookID, UserID: userID, ReservationDate: fixedNow}}
	byUser := model.ReservationFilter{BookID: bookID, UserID: userID}
	dbDown := errors.New("db down")

	type mockBehavior func(m serviceMocks)
	tests := []struct {
		name         string
		at           time.Time
		mockBehavior mockBehavior
		want         model.ReservationResult
		wantErr      error
	}{
		{
			name: "ok",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, returnedAt).Return(closed, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(available, nil)
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			},
			want: model.ReservationResult{Book: available, Reservation: closed},
		},
		{
			name: "zero date means now",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, fixedNow).Return(closed, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(available, nil)
				m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			},
			want: model.ReservationResult{Book: available, Reservation: closed},
		},
		{
			name: "not found",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(model.Book{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "not reserved",
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(available, nil)
			},
			wantErr: errs.ErrNotReserved,
		},
		{
			name: "other user's reservation fails before the flag is touched",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return([]model.Reservation{closed}, nil)
			},
			wantErr: errs.ErrNoActiveReservation,
		},
		{
			name: "reservation closed concurrently keeps the book reserved",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, returnedAt).Return(model.Reservation{}, errs.ErrNotFound)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(available, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, true).Return(reserved, nil)
			},
			wantErr: errs.ErrNoActiveReservation,
		},
		{
			name: "history read failure",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(nil, dbDown)
			},
			wantErr: dbDown,
		},
		{
			name: "flag failure reopens the reservation",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, returnedAt).Return(closed, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(model.Book{}, errs.ErrConflict)
				m.reservations.EXPECT().ReopenReservation(gomock.Any(), "r1").Return(model.Reservation{}, nil)
			},
			wantErr: errs.ErrNotReserved,
		},
		{
			name: "both halves fail, book error wins",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, returnedAt).Return(model.Reservation{}, errs.ErrNotFound)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(model.Book{}, dbDown)
			},
			wantErr: dbDown,
		},
		{
			name: "failed reopen is parked",
			at:   returnedAt,
			mockBehavior: func(m serviceMocks) {
				m.books.EXPECT().GetBook(gomock.Any(), bookID).Return(reserved, nil)
				m.reservations.EXPECT().ListReservations(gomock.Any(), byUser).Return(held, nil)
				m.reservations.EXPECT().CloseReservation(gomock.Any(), bookID, userID, returnedAt).Return(closed, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), bookID, false).Return(model.Book{}, dbDown)
				m.reservations.EXPECT().ReopenReservation(gomock.Any(), "r1").Return(model.Reservation{}, dbDown)
				expectPark(m, model.CompensateReopenReservation)
			},
			wantErr: dbDown,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, m := newMockedService(t)
			tt.mockBehavior(m)

			got, err := svc.Return(context.Background(), bookID, userID, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_Compensate(t *testing.T) {
	t.Parallel()
	open := []model.Reservation{{ID: "r1", BookID: "b1", UserID: "u1", ReservationDate: fixedNow}}
	returned := fixedNow.Add(time.Hour)
	closed := []model.Reservation{{ID: "r1", BookID: "b1", UserID: "u1", ReservationDate: fixedNow, ReturnDate: &returned}}

	type mockBehavior func(m serviceMocks)
	tests := []struct {
		name         string
		c            model.Compensation
		mockBehavior mockBehavior
		wantErr      error
	}{
		{
			name: "release",
			c:    model.Compensation{Kind: model.CompensateReleaseBook, BookID: "b1"},
			mockBehavior: func(m serviceMocks) {
				m.reservations.EXPECT().ListReservations(gomock.Any(), model.ReservationFilter{BookID: "b1"}).Return(closed, nil)
				m.books.EXPECT().SetReserved(gomock.Any(), "b1", false).Return(model.Book{}, nil)
			},
		},
		{
			name: "release skipped while a reservation is open",
			c:    model.Compensation{Kind: model.CompensateReleaseBook, BookID: "b1"},
			mockBehavior: func(m serviceMocks) {
				m.reservations.EXPECT().ListReservations(gomock.Any(), model.ReservationFilter{BookID: "b1"}).Return(open, nil)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "hold skipped without open reservation",
			c:    model.Compensation{Kind: model.CompensateHoldBook, BookID: "b1"},
			mockBehavior: func(m serviceMocks) {
				m.reservations.EXPECT().ListReservations(gomock.Any(), model.ReservationFilter{BookID: "b1"}).Return(closed, nil)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name: "reopen",
			c:    model.Compensation{Kind: model.CompensateReopenReservation, BookID: "b1", ReservationID: "r1"},
			mockBehavior: func(m serviceMocks) {
				m.reservations.EXPECT().ListReservations(gomock.Any(), model.ReservationFilter{BookID: "b1"}).Return(closed, nil)
				m.reservations.EXPECT().ReopenReservation(gomock.Any(), "r1").Return(open[0], nil)
			},
		},
		{
			name: "removal already applied",
			c:    model.Compensation{Kind: model.CompensateRemoveReservation, BookID: "b1", ReservationID: "r1"},
			mockBehavior: func(m serviceMocks) {
				m.reservations.EXPECT().DeleteReservation(gomock.Any(), "r1").Return(errs.ErrNotFound)
			},
			wantErr: errs.ErrConflict,
		},
		{
			name:         "unknown kind",
			c:            model.Compensation{Kind: "shred-book", BookID: "b1"},
			mockBehavior: func(m serviceMocks) {},
			wantErr:      errs.ErrValidation,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, m := newMockedService(t)
			tt.mockBehavior(m)

			err := svc.Compensate(context.Background(), tt.c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
