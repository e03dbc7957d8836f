package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"magiclink/internal/entity"
	"magiclink/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

func TestRateLimiterPerClient(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(rate.Limit(1), 2, time.Minute)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("third request within the same instant should be limited")
	}
	if !limiter.Allow("b") {
		t.Fatal("other clients have their own budget")
	}

	now = now.Add(time.Second)
	if !limiter.Allow("a") {
		t.Fatal("token should refill after a second")
	}

	now = now.Add(2 * time.Minute)
	limiter.Allow("c")
	if _, ok := limiter.limiters["b"]; ok {
		t.Fatal("idle client should be forgotten")
	}
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(rate.Limit(1), 10, time.Minute)
	limiter.now = func() time.Time { return now }

	e := echo.New()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.GET("/magic-link/:token", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, limiter.Middleware())

	limited := 0
	for i := 0; i < 30; i++ {
		req := httptest.NewRequest(http.MethodGet, "/magic-link/abc", nil)
		req.RemoteAddr = "198.51.100.20:5555"
		req.Header.Set(echo.HeaderXForwardedFor, "203.0.113."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 20 {
		t.Fatalf("limited = %d, want 20 once the burst is spent", limited)
	}
}

func TestRateLimiterTrustsForwardedForFromProxy(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(rate.Limit(1), 1, time.Minute)
	limiter.now = func() time.Time { return now }

	e := echo.New()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, limiter.Middleware())

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set(echo.HeaderXForwardedFor, client)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("client %s behind a private proxy: status = %d", client, rec.Code)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	manager := &utils.JWTManager{Secret: []byte("secret"), Issuer: "magiclink"}
	m := AuthMiddleware{JWT: manager}
	userID := uuid.New()
	token, _, err := manager.IssueAccessToken(userID.String(), string(entity.UserRoleUser), "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		cookie string
		want   entity.Caller
	}{
		{name: "anonymous", want: entity.Anonymous()},
		{name: "bearer", header: "Bearer " + token, want: entity.Caller{UserID: userID, Role: "user"}},
		{name: "cookie", cookie: token, want: entity.Caller{UserID: userID, Role: "user"}},
		{name: "garbage", header: "Bearer nope", want: entity.Anonymous()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tc.cookie})
			}
			c := e.NewContext(req, httptest.NewRecorder())

			var got entity.Caller
			err := m.OptionalAuth(func(c echo.Context) error {
				got = CallerFromContext(c)
				return nil
			})(c)
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if got != tc.want {
				t.Fatalf("caller = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	m := AuthMiddleware{JWT: &utils.JWTManager{Secret: []byte("secret")}}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := m.RequireAuth(func(echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
