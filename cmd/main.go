package main

import (
	"net/http"
	"os"
	"time"

	"magiclink/api/handler"
	apiMiddleware "magiclink/api/middleware"
	"magiclink/api/routes"
	"magiclink/config"
	"magiclink/internal/repository"
	"magiclink/internal/service"
	"magiclink/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load(nil)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	db, err := config.OpenDatabase(cfg, nil)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	logger.WithField("driver", cfg.DBDriver).Info("database connected")

	validate := validator.New()
	clock := service.RealClock{}

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: 15 * time.Minute,
	}
	accessIssuer := service.JWTAccessIssuer{Manager: &accessManager}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	useRepo := repository.NewUseRepository(db)

	authenticators := service.NewAuthenticatorRegistry()
	sessionAuthenticator := service.SessionAuthenticator{
		Sessions:   sessionRepo,
		Users:      userRepo,
		Tokens:     accessIssuer,
		SessionTTL: cfg.SessionExpiry(),
		Clock:      clock,
	}
	authenticators.Register(service.BackendSession, sessionAuthenticator)
	authenticators.Register(service.BackendToken, service.TokenAuthenticator{Tokens: accessIssuer})
	authenticator, err := authenticators.Resolve(cfg.AuthenticationBackend)
	if err != nil {
		logger.WithError(err).Fatal("invalid authentication backend")
	}

	var emailSender service.EmailSender
	if sender := service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom); sender != nil {
		emailSender = sender
	} else {
		logger.Warn("RESEND_API_KEY or EMAIL_FROM missing, magic links will not be emailed")
	}

	linkService := service.NewLinkService(
		linkRepo,
		useRepo,
		userRepo,
		authenticator,
		emailSender,
		clock,
		service.LinkConfig{
			DefaultExpiry:   cfg.DefaultExpiry(),
			DefaultRedirect: cfg.DefaultRedirect,
			BaseURL:         cfg.AppBaseURL,
		},
		logger,
	)

	linkHandler := handler.NewLinkHandler(linkService, validate, logger)
	linkHandler.Cookies.Domain = cfg.CookieDomain
	linkHandler.Cookies.Secure = cfg.CookieSecure
	adminHandler := handler.NewAdminHandler(linkService, validate)
	sessionHandler := handler.NewSessionHandler(sessionAuthenticator)
	sessionHandler.Cookies = linkHandler.Cookies

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	// Forwarded addresses are honoured only when the hop that sent them is a
	// loopback or private address, i.e. our own proxy.
	app.IPExtractor = echo.ExtractIPFromXFFHeader()
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestID())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			// Only the route pattern is logged; paths carry raw link tokens.
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"route":  c.Path(),
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager, Sessions: sessionRepo}
	router := routes.NewRouter(app, linkHandler, adminHandler, authMiddleware)
	router.Sessions = sessionHandler
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"addr":    cfg.HTTPAddr,
		"backend": cfg.AuthenticationBackend,
	}).Info("server started")
	if err := app.StartServer(server); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
