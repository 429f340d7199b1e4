package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

// Reserve flips the book flag and opens a reservation concurrently.
// When only one half succeeds it is rolled back before the error is returned.
func (s *Service) Reserve(ctx context.Context, bookID, userID string) (model.ReservationResult, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return model.ReservationResult{}, errors.Wrapf(err, "reserve book %s", bookID)
	}
	switch {
	case book.Disabled:
		return model.ReservationResult{}, errors.Wrapf(errs.ErrDisabled, "reserve book %s", bookID)
	case book.Reserved:
		return model.ReservationResult{}, errors.Wrapf(errs.ErrConflict, "book %s is already reserved", bookID)
	}

	var (
		gg              errgroup.Group
		held            model.Book
		res             model.Reservation
		bookErr, resErr error
	)
	at := s.now().UTC()
	gg.Go(func() error {
		ctx, cancel := s.storeCtx(ctx)
		defer cancel()
		held, bookErr = s.books.SetReserved(ctx, bookID, true)
		return bookErr
	})
	gg.Go(func() error {
		res, resErr = s.insertReservation(ctx, bookID, userID, at)
		return resErr
	})
	err = gg.Wait()
	if bookErr == nil && errors.Is(resErr, errs.ErrConflict) {
		res, resErr = s.retryInsert(ctx, bookID, userID, at)
		err = resErr
	}
	if err == nil {
		s.publish(ctx, model.EventBookReserved, res)
		return model.ReservationResult{Book: held, Reservation: res}, nil
	}

	switch {
	case bookErr == nil:
		s.compensate(ctx, model.Compensation{
			Kind:   model.CompensateReleaseBook,
			BookID: bookID,
			Cause:  resErr.Error(),
		})
		s.log.Warn("reserve: reservation not written", zap.String("book", bookID), zap.Error(resErr))
		return model.ReservationResult{}, errors.Wrapf(resErr, "reserve book %s", bookID)
	case resErr == nil:
		s.compensate(ctx, model.Compensation{
			Kind:          model.CompensateRemoveReservation,
			BookID:        bookID,
			ReservationID: res.ID,
			Cause:         bookErr.Error(),
		})
	}
	if errors.Is(bookErr, errs.ErrConflict) {
		return model.ReservationResult{}, errors.Wrapf(bookErr, "book %s is already reserved", bookID)
	}
	s.log.Warn("reserve: book not flagged", zap.String("book", bookID), zap.Error(bookErr))
	return model.ReservationResult{}, errors.Wrapf(bookErr, "reserve book %s", bookID)
}

// Return closes the open reservation of (bookID, userID) and clears the book flag concurrently.
// A zero at means now.
func (s *Service) Return(ctx context.Context, bookID, userID string, at time.Time) (model.ReservationResult, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return model.ReservationResult{}, errors.Wrapf(err, "return book %s", bookID)
	}
	if !book.Reserved {
		return model.ReservationResult{}, errors.Wrapf(errs.ErrNotReserved, "return book %s", bookID)
	}
	// the flag is only touched by the holder of the open reservation
	_, open, err := s.openReservation(ctx, model.ReservationFilter{BookID: bookID, UserID: userID})
	if err != nil {
		return model.ReservationResult{}, errors.Wrapf(err, "return book %s", bookID)
	}
	if !open {
		return model.ReservationResult{}, errors.Wrapf(errs.ErrNoActiveReservation, "return book %s by user %s", bookID, userID)
	}
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var (
		gg              errgroup.Group
		released        model.Book
		res             model.Reservation
		bookErr, resErr error
	)
	gg.Go(func() error {
		ctx, cancel := s.storeCtx(ctx)
		defer cancel()
		res, resErr = s.reservations.CloseReservation(ctx, bookID, userID, at)
		if errors.Is(resErr, errs.ErrNotFound) {
			resErr = errs.ErrNoActiveReservation
		}
		return resErr
	})
	gg.Go(func() error {
		ctx, cancel := s.storeCtx(ctx)
		defer cancel()
		released, bookErr = s.books.SetReserved(ctx, bookID, false)
		if errors.Is(bookErr, errs.ErrConflict) {
			bookErr = errs.ErrNotReserved
		}
		return bookErr
	})
	if err := gg.Wait(); err == nil {
		s.publish(ctx, model.EventBookReturned, res)
		return model.ReservationResult{Book: released, Reservation: res}, nil
	}

	switch {
	case bookErr == nil:
		s.compensate(ctx, model.Compensation{
			Kind:   model.CompensateHoldBook,
			BookID: bookID,
			Cause:  resErr.Error(),
		})
		if errors.Is(resErr, errs.ErrNoActiveReservation) {
			s.log.Warn("return: no open reservation for user",
				zap.String("book", bookID), zap.String("user", userID))
		}
		return model.ReservationResult{}, errors.Wrapf(resErr, "return book %s by user %s", bookID, userID)
	case resErr == nil:
		s.compensate(ctx, model.Compensation{
			Kind:          model.CompensateReopenReservation,
			BookID:        bookID,
			ReservationID: res.ID,
			Cause:         bookErr.Error(),
		})
	}
	return model.ReservationResult{}, errors.Wrapf(bookErr, "return book %s", bookID)
}

// Compensate replays a parked compensation. A compensation that no longer applies
// reports errs.ErrConflict so that the caller can drop it.
func (s *Service) Compensate(ctx context.Context, c model.Compensation) error {
	switch c.Kind {
	case model.CompensateReleaseBook, model.CompensateReopenReservation:
		_, open, err := s.openReservation(ctx, model.ReservationFilter{BookID: c.BookID})
		if err != nil {
			return err
		}
		if open {
			return errors.Wrapf(errs.ErrConflict, "%s: book %s has an open reservation", c.Kind, c.BookID)
		}
	case model.CompensateHoldBook:
		_, open, err := s.openReservation(ctx, model.ReservationFilter{BookID: c.BookID})
		if err != nil {
			return err
		}
		if !open {
			return errors.Wrapf(errs.ErrConflict, "%s: book %s has no open reservation", c.Kind, c.BookID)
		}
	}
	return s.applyCompensation(ctx, c)
}

func (s *Service) applyCompensation(ctx context.Context, c model.Compensation) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var err error
	switch c.Kind {
	case model.CompensateReleaseBook:
		_, err = s.books.SetReserved(ctx, c.BookID, false)
	case model.CompensateHoldBook:
		_, err = s.books.SetReserved(ctx, c.BookID, true)
	case model.CompensateRemoveReservation:
		err = s.reservations.DeleteReservation(ctx, c.ReservationID)
	case model.CompensateReopenReservation:
		_, err = s.reservations.ReopenReservation(ctx, c.ReservationID)
	default:
		return errors.Wrapf(errs.ErrValidation, "unknown compensation %q", c.Kind)
	}
	if errors.Is(err, errs.ErrNotFound) {
		err = errs.ErrConflict
	}
	return errors.Wrapf(err, "compensate %s book %s", c.Kind, c.BookID)
}

// compensate runs a corrective write detached from the caller's cancellation.
// When it fails the write is parked for replay.
func (s *Service) compensate(ctx context.Context, c model.Compensation) {
	ctx = context.WithoutCancel(ctx)
	c.CreatedAt = s.now().UTC()
	err := s.applyCompensation(ctx, c)
	if err == nil {
		s.log.Info("compensated",
			zap.String("kind", string(c.Kind)),
			zap.String("book", c.BookID),
			zap.String("cause", c.Cause))
		return
	}
	s.log.Error("compensation failed",
		zap.String("kind", string(c.Kind)),
		zap.String("book", c.BookID),
		zap.String("reservation", c.ReservationID),
		zap.Error(err))
	if err := s.publisher.Park(ctx, c); err != nil {
		s.log.Error("park compensation", zap.String("book", c.BookID), zap.Error(err))
	}
}

func (s *Service) openReservation(ctx context.Context, filter model.ReservationFilter) (model.Reservation, bool, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	items, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		return model.Reservation{}, false, errors.Wrapf(err, "reservations of book %s", filter.BookID)
	}
	for _, r := range items {
		if r.Open() {
			return r, true, nil
		}
	}
	return model.Reservation{}, false, nil
}

func (s *Service) insertReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.reservations.CreateReservation(ctx, bookID, userID, at)
}

// retryInsert runs while this call holds the book flag. The open row it collides with
// belongs to a concurrent reserve that lost the flag and is removing its row.
func (s *Service) retryInsert(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	var err error = errs.ErrConflict
	for attempt := 1; attempt <= s.insertRetries; attempt++ {
		select {
		case <-ctx.Done():
			return model.Reservation{}, ctx.Err()
		case <-time.After(s.insertBackoff * time.Duration(attempt)):
		}
		var res model.Reservation
		res, err = s.insertReservation(ctx, bookID, userID, at)
		if !errors.Is(err, errs.ErrConflict) {
			return res, err
		}
	}
	s.log.Warn("reserve: open reservation still present", zap.String("book", bookID), zap.Int("retries", s.insertRetries))
	return model.Reservation{}, err
}

// publish is best effort.
func (s *Service) publish(ctx context.Context, typ model.EventType, res model.Reservation) {
	ev := model.ReservationEvent{
		Type:          typ,
		BookID:        res.BookID,
		UserID:        res.UserID,
		ReservationID: res.ID,
		Timestamp:     s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("publish event", zap.String("type", string(typ)), zap.String("book", res.BookID), zap.Error(err))
	}
}
