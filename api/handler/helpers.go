package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"magiclink/internal/dto"
	"magiclink/internal/entity"
	"magiclink/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func validate(v *validator.Validate, payload any) error {
	if v == nil {
		return nil
	}
	return v.Struct(payload)
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, dto.ErrorResponse{Message: err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	var validationErr *entity.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Message: validationErr.Error(),
			Reason:  string(validationErr.Reason),
		})
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRedirect):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrPermissionDenied), errors.Is(err, entity.ErrUserInactive):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrUserNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidRefreshToken):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrLoginFailed):
		status, message = http.StatusServiceUnavailable, service.ErrLoginFailed.Error()
	case errors.Is(err, service.ErrEmailNotConfigured):
		status, message = http.StatusFailedDependency, err.Error()
	}
	return c.JSON(status, dto.ErrorResponse{Message: message})
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
