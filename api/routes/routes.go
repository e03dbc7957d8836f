package routes

import (
	"time"

	"magiclink/api/handler"
	"magiclink/api/middleware"
	"magiclink/internal/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Links          *handler.LinkHandler
	Admin          *handler.AdminHandler
	Sessions       *handler.SessionHandler
	AuthMiddleware middleware.AuthMiddleware
	LinkRate       *middleware.RateLimiter
	RequestRate    *middleware.RateLimiter
}

func NewRouter(e *echo.Echo, links *handler.LinkHandler, admin *handler.AdminHandler, authMiddleware middleware.AuthMiddleware) *Router {
	return &Router{
		Echo:           e,
		Links:          links,
		Admin:          admin,
		AuthMiddleware: authMiddleware,
		LinkRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		RequestRate:    middleware.NewRateLimiter(rate.Limit(0.2), 3, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	// Rate limits key on c.RealIP. Without an extractor echo would trust
	// X-Forwarded-For from anyone.
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.GET("/magic-link/:token", r.Links.Landing, r.LinkRate.Middleware(), r.AuthMiddleware.OptionalAuth)
	e.POST("/magic-link/:token", r.Links.Confirm, r.LinkRate.Middleware(), r.AuthMiddleware.OptionalAuth)
	e.POST("/auth/magic-link", r.Links.RequestLink, r.RequestRate.Middleware())
	if r.Sessions != nil {
		e.POST("/auth/refresh", r.Sessions.Refresh, r.LinkRate.Middleware())
	}

	admin := e.Group("/admin/magic-links", r.AuthMiddleware.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
	admin.POST("", r.Admin.Create)
	admin.GET("", r.Admin.List)
	admin.POST("/deactivate-all", r.Admin.DeactivateAll)
	admin.GET("/:id/uses", r.Admin.Uses)
	admin.POST("/:id/deactivate", r.Admin.Deactivate)
	admin.POST("/:id/reconcile", r.Admin.Reconcile)
}
