package handler

import (
	"context"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/auth"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (model.BookDetails, error)
	UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, error)
	DisableBook(ctx context.Context, id string) error
	Reserve(ctx context.Context, bookID, userID string) (model.ReservationResult, error)
	Return(ctx context.Context, bookID, userID string, at time.Time) (model.ReservationResult, error)
}

type UserService interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error)
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (model.User, error)
	DisableUser(ctx context.Context, id string) error
}

type Authorizer interface {
	Authorize(ctx context.Context, header string, perm model.Permission, targetUserID string) (auth.Identity, error)
	AuthorizeSelf(ctx context.Context, header string) (auth.Identity, error)
}

var (
	_ BookService = (*service.Service)(nil)
	_ UserService = (*service.Service)(nil)
	_ Authorizer  = (*auth.Evaluator)(nil)
)
