package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"magiclink/internal/service"

	"github.com/labstack/echo/v4"
)

type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.LoginResult, error)
}

// SessionHandler exchanges the refresh cookie set by a magic link login for
// a new access token.
type SessionHandler struct {
	Refresher SessionRefresher
	Cookies   CookieConfig
	Now       func() time.Time
}

func NewSessionHandler(refresher SessionRefresher) *SessionHandler {
	return &SessionHandler{
		Refresher: refresher,
		Cookies:   DefaultCookieConfig(),
	}
}

func (h *SessionHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(h.Cookies.RefreshName)
	if err != nil || cookie.Value == "" {
		return writeError(c, http.StatusUnauthorized, errors.New("missing refresh token"))
	}

	result, err := h.Refresher.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			c.SetCookie(h.Cookies.expired(h.Cookies.RefreshName))
		}
		return writeServiceError(c, err)
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	c.SetCookie(h.Cookies.cookie(h.Cookies.RefreshName, result.RefreshToken, result.RefreshExpiresIn, now))
	c.SetCookie(h.Cookies.cookie(h.Cookies.AccessName, result.AccessToken, result.ExpiresIn, now))
	return c.NoContent(http.StatusNoContent)
}
