package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

func (h *Handler) GetBooks(c echo.Context) error {
	var filter model.BookFilter
	err := echo.QueryParamsBinder(c).
		String("title", &filter.Title).
		String("author", &filter.Author).
		String("publisher", &filter.Publisher).
		String("genre", &filter.Genre).
		String("isbn", &filter.ISBN).
		String("pubDate", &filter.PubDate).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if reservedParam := c.QueryParam("reserved"); reservedParam != "" {
		reserved, err := strconv.ParseBool(reservedParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.New("reserved is invalid"))
		}
		filter.Reserved = &reserved
	}

	books, err := h.bookSvc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	details, err := h.bookSvc.GetBook(c.Request().Context(), c.Param("bookId"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, details)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

type updateBookRequest struct {
	model.BookUpdate
	Reserved   *bool       `json:"reserved"`
	ReturnDate *model.Date `json:"returnDate"`
	Disabled   *bool       `json:"disabled"`
}

// UpdateBook is a reserve or a return when the body carries "reserved", and a plain
// field update otherwise. Both need a valid credential before the body is read.
func (h *Handler) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()
	bookID := c.Param("bookId")

	id, err := h.authz.AuthorizeSelf(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return h.httpError(err)
	}

	var req updateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Reserved != nil {
		if !req.BookUpdate.Empty() || req.Disabled != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reserved cannot be combined with other fields")
		}
		var res model.ReservationResult
		if *req.Reserved {
			res, err = h.bookSvc.Reserve(ctx, bookID, id.UserID)
		} else {
			res, err = h.bookSvc.Return(ctx, bookID, id.UserID, returnDate(req.ReturnDate))
		}
		if err != nil {
			return h.httpError(err)
		}
		return c.JSON(http.StatusOK, res)
	}

	if !id.Permissions.Grants(model.PermissionUpdateBooks) {
		h.log.Info("update book without permission", zap.String("user", id.UserID), zap.String("book", bookID))
		return h.httpError(errs.ErrUnauthorized)
	}
	if req.Disabled != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "use DELETE to disable a book")
	}
	book, err := h.bookSvc.UpdateBook(ctx, bookID, req.BookUpdate)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ReserveBook(c echo.Context) error {
	res, err := h.bookSvc.Reserve(c.Request().Context(), c.Param("bookId"), identity(c).UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	var req model.ReturnRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	res, err := h.bookSvc.Return(c.Request().Context(), c.Param("bookId"), identity(c).UserID, returnDate(req.ReturnDate))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DisableBook(c echo.Context) error {
	if err := h.bookSvc.DisableBook(c.Request().Context(), c.Param("bookId")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func returnDate(d *model.Date) time.Time {
	if t := d.Ptr(); t != nil {
		return *t
	}
	return time.Time{}
}
