package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	md "github.com/Astemirdum/lending-service/pkg/middleware"
	"github.com/Astemirdum/lending-service/pkg/validate"
)

type Handler struct {
	bookSvc BookService
	userSvc UserService
	authz   Authorizer
	log     *zap.Logger
}

func New(bookSvc BookService, userSvc UserService, authz Authorizer, log *zap.Logger) *Handler {
	return &Handler{
		bookSvc: bookSvc,
		userSvc: userSvc,
		authz:   authz,
		log:     log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/users", h.CreateUser)
	api.POST("/users/login", h.Login)
	api.PUT("/users/:userId", h.UpdateUser, h.authorize(model.PermissionUpdateUsers, "userId"))
	api.DELETE("/users/:userId", h.DisableUser, h.authorize(model.PermissionDeleteUsers, "userId"))

	api.GET("/books", h.GetBooks)
	api.GET("/books/:bookId", h.GetBook)
	api.POST("/books", h.CreateBook, h.authorize(model.PermissionCreateBooks, ""))
	// guarded inside: a reservation flag change needs only a signed-in user
	api.PUT("/books/:bookId", h.UpdateBook)
	api.POST("/books/:bookId/reserve", h.ReserveBook, h.authenticate())
	api.POST("/books/:bookId/return", h.ReturnBook, h.authenticate())
	api.DELETE("/books/:bookId", h.DisableBook, h.authorize(model.PermissionDeleteBooks, ""))

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps domain errors to statuses. Anything unknown is a 500.
func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrInvalidCredentials.Error())
	case errors.Is(err, errs.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrDisabled):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrNotReserved),
		errors.Is(err, errs.ErrNoActiveReservation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	h.log.Error("internal", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
