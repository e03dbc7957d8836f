package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"magiclink/internal/repository"
	"magiclink/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const AccessTokenCookie = "access_token"

var errUnauthorized = errors.New("unauthorized")

type AuthMiddleware struct {
	JWT      *utils.JWTManager
	Sessions repository.SessionRepository
	Now      func() time.Time
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := m.authenticate(c); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

// OptionalAuth attaches the caller when a valid token is presented and
// otherwise lets the request through anonymously.
func (m AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		_ = m.authenticate(c)
		return next(c)
	}
}

func (m AuthMiddleware) authenticate(c echo.Context) error {
	if m.JWT == nil {
		return errUnauthorized
	}
	token := extractToken(c)
	if token == "" {
		return errUnauthorized
	}
	claims, err := m.JWT.ParseAccessToken(token)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return errUnauthorized
	}

	sessionID := uuid.Nil
	if claims.SessionID != "" {
		sessionID, err = uuid.Parse(claims.SessionID)
		if err != nil {
			return errUnauthorized
		}
		if m.Sessions != nil {
			session, err := m.Sessions.FindActiveByID(c.Request().Context(), sessionID, m.now())
			if err != nil {
				return err
			}
			if session == nil || session.UserID != userID {
				return errUnauthorized
			}
		}
	}

	SetAuthContext(c, userID, claims.Role, sessionID)
	return nil
}

func (m AuthMiddleware) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func extractToken(c echo.Context) string {
	if token := extractBearerToken(c.Request()); token != "" {
		return token
	}
	cookie, err := c.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
