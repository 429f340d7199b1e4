package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/lending-service/library/internal/auth"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

const identityKey = "identity"

// authorize admits holders of perm. With targetParam set, the user named by that path
// parameter is admitted too.
func (h *Handler) authorize(perm model.Permission, targetParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var target string
			if targetParam != "" {
				target = c.Param(targetParam)
			}
			id, err := h.authz.Authorize(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization), perm, target)
			if err != nil {
				return h.httpError(err)
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func (h *Handler) authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := h.authz.AuthorizeSelf(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return h.httpError(err)
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func identity(c echo.Context) auth.Identity {
	id, _ := c.Get(identityKey).(auth.Identity)
	return id
}
