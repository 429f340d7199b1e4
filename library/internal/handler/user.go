package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

func (h *Handler) CreateUser(c echo.Context) error {
	var req model.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.userSvc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.userSvc.Login(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	var upd model.UserUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// self-service covers the profile, not the permission set
	if upd.Permissions != nil && !identity(c).Permissions.Grants(model.PermissionUpdateUsers) {
		return h.httpError(errs.ErrUnauthorized)
	}
	user, err := h.userSvc.UpdateUser(c.Request().Context(), c.Param("userId"), upd)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) DisableUser(c echo.Context) error {
	if err := h.userSvc.DisableUser(c.Request().Context(), c.Param("userId")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
