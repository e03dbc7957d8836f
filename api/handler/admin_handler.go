package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"magiclink/internal/dto"
	"magiclink/internal/repository"
	"magiclink/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const totalCountHeader = "X-Total-Count"

type AdminHandler struct {
	Service  *service.LinkService
	Validate *validator.Validate
	Now      func() time.Time
}

func NewAdminHandler(svc *service.LinkService, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{Service: svc, Validate: validate}
}

func (h *AdminHandler) Create(c echo.Context) error {
	var req dto.CreateLinkRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}

	ctx := c.Request().Context()
	link, err := h.Service.Create(ctx, service.CreateLinkInput{
		UserID:        userID,
		RedirectTo:    req.RedirectTo,
		ExpirySeconds: req.ExpirySeconds,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	if req.SendEmail {
		if err := h.Service.SendLink(ctx, link); err != nil {
			return writeServiceError(c, err)
		}
	}
	return c.JSON(http.StatusCreated, dto.CreateLinkResponse{
		Link:  dto.LinkResponseFromEntity(link, h.now()),
		URL:   h.Service.LinkURL(link),
		Token: link.Token,
	})
}

func (h *AdminHandler) List(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	filter := repository.LinkFilter{Limit: limit, Offset: offset}
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
		}
		filter.UserID = &userID
	}
	links, err := h.Service.ListLinks(c.Request().Context(), filter)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LinkResponsesFromEntities(links, h.now()))
}

func (h *AdminHandler) Uses(c echo.Context) error {
	id, err := parseLinkID(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	ctx := c.Request().Context()
	link, err := h.Service.FindByID(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	limit, offset := parseLimitOffset(c)
	uses, err := h.Service.ListUses(ctx, id, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	total, err := h.Service.CountUses(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	c.Response().Header().Set(totalCountHeader, strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, dto.UseResponsesFromEntities(uses, link.LoggedInAt))
}

func (h *AdminHandler) Deactivate(c echo.Context) error {
	id, err := parseLinkID(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	link, err := h.Service.Deactivate(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LinkResponseFromEntity(link, h.now()))
}

func (h *AdminHandler) DeactivateAll(c echo.Context) error {
	count, err := h.Service.DeactivateAll(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}

func (h *AdminHandler) Reconcile(c echo.Context) error {
	id, err := parseLinkID(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	link, err := h.Service.ReconcileAccessedAt(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LinkResponseFromEntity(link, h.now()))
}

func (h *AdminHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func parseLinkID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.New("invalid link id")
	}
	return id, nil
}
