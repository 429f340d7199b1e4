package errs

import (
	"errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDisabled            = errors.New("disabled")
	ErrConflict            = errors.New("conflict")
	ErrNotReserved         = errors.New("book is not reserved")
	ErrNoActiveReservation = errors.New("no active reservation for this book and user")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("not authorized")
	ErrValidation          = errors.New("validation error")
)
