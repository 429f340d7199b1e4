package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Author) == "" {
		return model.Book{}, errors.Wrap(errs.ErrValidation, "title and author are required")
	}
	book, err := s.books.CreateBook(ctx, model.Book{
		Title:     req.Title,
		Author:    req.Author,
		Publisher: req.Publisher,
		Genre:     req.Genre,
		ISBN:      req.ISBN,
		PubDate:   req.PubDate.Ptr(),
	})
	if err != nil {
		s.log.Error("CreateBook", zap.Error(err))
		return model.Book{}, errors.Wrap(err, "create book")
	}
	return book, nil
}

// ListBooks never returns disabled books.
func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	enabled := false
	filter.Disabled = &enabled
	filter.PubDateAt = nil
	if filter.PubDate != "" {
		at, err := model.ParseDate(filter.PubDate)
		if err != nil {
			return nil, err
		}
		filter.PubDateAt = &at
	}
	books, err := s.books.ListBooks(ctx, filter)
	if err != nil {
		s.log.Error("ListBooks", zap.Error(err))
		return nil, errors.Wrap(err, "list books")
	}
	return books, nil
}

// GetBook returns an empty result for a disabled book.
func (s *Service) GetBook(ctx context.Context, id string) (model.BookDetails, error) {
	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return model.BookDetails{}, errors.Wrapf(err, "get book %s", id)
	}
	if book.Disabled {
		return model.BookDetails{ReservationHistory: []model.Reservation{}}, nil
	}
	history, err := s.reservations.ListReservations(ctx, model.ReservationFilter{BookID: id})
	if err != nil {
		s.log.Error("GetBook history", zap.String("book", id), zap.Error(err))
		return model.BookDetails{}, errors.Wrapf(err, "reservation history of book %s", id)
	}
	return model.BookDetails{Book: &book, ReservationHistory: history}, nil
}

func (s *Service) UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" ||
		upd.Author != nil && strings.TrimSpace(*upd.Author) == "" {
		return model.Book{}, errors.Wrap(errs.ErrValidation, "title and author cannot be empty")
	}
	if _, err := s.books.GetBook(ctx, id); err != nil {
		return model.Book{}, errors.Wrapf(err, "update book %s", id)
	}
	// ErrNotFound here means the book vanished after the check
	book, err := s.books.UpdateBook(ctx, id, upd)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Error("UpdateBook", zap.String("book", id), zap.Error(err))
		}
		return model.Book{}, errors.Wrapf(err, "update book %s", id)
	}
	return book, nil
}

// DisableBook is idempotent. A reserved book cannot be disabled.
func (s *Service) DisableBook(ctx context.Context, id string) error {
	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "disable book %s", id)
	}
	if book.Disabled {
		return nil
	}
	if err := s.books.DisableBook(ctx, id); err != nil {
		return errors.Wrapf(err, "disable book %s", id)
	}
	s.log.Info("book disabled", zap.String("book", id))
	return nil
}
