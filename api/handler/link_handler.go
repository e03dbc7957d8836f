package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"magiclink/api/middleware"
	"magiclink/internal/dto"
	"magiclink/internal/entity"
	"magiclink/internal/service"
	"magiclink/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// LinkHandler serves the public side of magic links: the landing page, the
// confirmation that performs the login, and self-service link requests.
type LinkHandler struct {
	Service  *service.LinkService
	Validate *validator.Validate
	Cookies  CookieConfig
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

func NewLinkHandler(svc *service.LinkService, validate *validator.Validate, logger logrus.FieldLogger) *LinkHandler {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &LinkHandler{
		Service:  svc,
		Validate: validate,
		Cookies:  DefaultCookieConfig(),
		Logger:   logger,
	}
}

// Landing never logs the user in, so mail scanners that prefetch the URL
// only leave a Use behind.
func (h *LinkHandler) Landing(c echo.Context) error {
	link, err := h.Service.FindByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeServiceError(c, err)
	}
	if err := h.check(c, link); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LandingResponse{
		LinkID:     link.ID.String(),
		ConfirmURL: c.Request().URL.Path,
		RedirectTo: link.RedirectTo,
		ExpiresAt:  link.ExpiresAt,
	})
}

func (h *LinkHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.Service.FindByToken(ctx, c.Param("token"))
	if err != nil {
		return writeServiceError(c, err)
	}
	if err := h.check(c, link); err != nil {
		return writeServiceError(c, err)
	}

	ctx = service.WithClientInfo(ctx, service.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: utils.ParseUserAgent(c.Request()),
	})
	result, err := h.Service.Consummate(ctx, link)
	if err != nil {
		// The successful check above is already on record; this row marks the
		// same request as failed.
		if _, recordErr := h.Service.RecordUse(ctx, link, useMetadata(c, err)); recordErr != nil {
			h.Logger.WithError(recordErr).WithField("link_id", link.ID).Error("failed to record magic link login failure")
		}
		return writeServiceError(c, err)
	}

	now := h.now()
	if result.RefreshToken != "" {
		c.SetCookie(h.Cookies.cookie(h.Cookies.RefreshName, result.RefreshToken, result.RefreshExpiresIn, now))
	}
	if result.AccessToken != "" {
		c.SetCookie(h.Cookies.cookie(h.Cookies.AccessName, result.AccessToken, result.ExpiresIn, now))
	}
	return c.Redirect(http.StatusFound, link.RedirectTo)
}

// RequestLink answers 202 for any well-formed request so the endpoint
// cannot be used to discover accounts.
func (h *LinkHandler) RequestLink(c echo.Context) error {
	var req dto.RequestLinkRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}

	err := h.Service.RequestLink(c.Request().Context(), req.Email, req.RedirectTo)
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRedirect):
		return writeServiceError(c, err)
	case err != nil:
		h.Logger.WithError(err).Error("magic link request failed")
	}
	return c.NoContent(http.StatusAccepted)
}

// check validates and authorizes the link for the current caller and
// records the attempt whatever the outcome.
func (h *LinkHandler) check(c echo.Context, link *entity.Link) error {
	checkErr := h.Service.Validate(link)
	if checkErr == nil {
		checkErr = h.Service.Authorize(link, middleware.CallerFromContext(c))
	}
	if _, err := h.Service.RecordUse(c.Request().Context(), link, useMetadata(c, checkErr)); err != nil {
		return err
	}
	return checkErr
}

func (h *LinkHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// requestID returns the X-Request-Id of the response, assigning one when no
// middleware has.
func requestID(c echo.Context) string {
	header := c.Response().Header()
	id := header.Get(echo.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
		header.Set(echo.HeaderXRequestID, id)
	}
	return id
}

func useMetadata(c echo.Context, err error) service.UseMetadata {
	r := c.Request()
	caller := middleware.CallerFromContext(c)
	meta := service.UseMetadata{
		HTTPMethod: r.Method,
		RemoteAddr: utils.ParseRemoteAddr(r),
		UserAgent:  utils.ParseUserAgent(r),
		Err:        err,
	}
	if caller.SessionID != uuid.Nil {
		meta.SessionKey = caller.SessionID.String()
	}

	extra := map[string]any{"request_id": requestID(c)}
	if referer := r.Referer(); referer != "" {
		extra["referer"] = referer
	}
	if language := r.Header.Get("Accept-Language"); language != "" {
		extra["accept_language"] = language
	}
	if caller.IsAuthenticated() {
		extra["caller_user_id"] = caller.UserID.String()
	}
	meta.Extra = extra
	return meta
}
