package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"magiclink/internal/entity"
	"magiclink/internal/repository"
	"magiclink/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxUseErrorLength = 100

type LinkService struct {
	links repository.LinkRepository
	uses  repository.UseRepository
	users repository.UserRepository

	authenticator Authenticator
	emailSender   EmailSender
	clock         Clock
	config        LinkConfig
	logger        logrus.FieldLogger
}

func NewLinkService(
	links repository.LinkRepository,
	uses repository.UseRepository,
	users repository.UserRepository,
	authenticator Authenticator,
	emailSender EmailSender,
	clock Clock,
	config LinkConfig,
	logger logrus.FieldLogger,
) *LinkService {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &LinkService{
		links:         links,
		uses:          uses,
		users:         users,
		authenticator: authenticator,
		emailSender:   emailSender,
		clock:         clock,
		config:        config,
		logger:        logger,
	}
}

// Create issues a new link for an existing, active user. Explicit redirect
// and expiry arguments win over the configured defaults. The returned link
// carries the raw token; it is not recoverable afterwards.
func (s *LinkService) Create(ctx context.Context, input CreateLinkInput) (*entity.Link, error) {
	if input.UserID == uuid.Nil || input.ExpirySeconds < 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	raw, hash, err := utils.GenerateLinkToken()
	if err != nil {
		return nil, err
	}

	expiry := s.defaultExpiry()
	if input.ExpirySeconds > 0 {
		expiry = time.Duration(input.ExpirySeconds) * time.Second
	}
	redirectTo := strings.TrimSpace(input.RedirectTo)
	if redirectTo == "" {
		redirectTo = s.defaultRedirect()
	} else if !utils.IsLocalRedirect(redirectTo) {
		return nil, ErrInvalidRedirect
	}

	now := s.now()
	link := &entity.Link{
		UserID:     user.ID,
		TokenHash:  hash,
		RedirectTo: redirectTo,
		CreatedAt:  now,
		ExpiresAt:  now.Add(expiry),
		IsActive:   true,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}
	link.Token = raw

	s.logger.WithFields(logrus.Fields{
		"link_id":    link.ID,
		"user_id":    link.UserID,
		"expires_at": link.ExpiresAt,
	}).Info("magic link created")
	return link, nil
}

// RequestLink issues and emails a link to the active account behind email.
// Unknown addresses succeed silently so callers cannot probe for accounts.
func (s *LinkService) RequestLink(ctx context.Context, email string, redirectTo string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}
	if redirectTo != "" && !utils.IsLocalRedirect(redirectTo) {
		return ErrInvalidRedirect
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || s.emailSender == nil {
		return nil
	}

	link, err := s.Create(ctx, CreateLinkInput{UserID: user.ID, RedirectTo: redirectTo})
	if err != nil {
		return err
	}
	return s.emailSender.SendMagicLink(ctx, user.Email, s.LinkURL(link), link.ExpiresAt)
}

// SendLink emails a freshly created link to its owner.
func (s *LinkService) SendLink(ctx context.Context, link *entity.Link) error {
	if s.emailSender == nil {
		return ErrEmailNotConfigured
	}
	if link.Token == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, link.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.emailSender.SendMagicLink(ctx, user.Email, s.LinkURL(link), link.ExpiresAt)
}

// FindByToken looks a link up by its raw token. Unknown tokens fail with
// ErrLinkNotFound, the same as any other lookup miss.
func (s *LinkService) FindByToken(ctx context.Context, token string) (*entity.Link, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrLinkNotFound
	}
	link, err := s.links.FindByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

func (s *LinkService) FindByID(ctx context.Context, id uuid.UUID) (*entity.Link, error) {
	link, err := s.links.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

func (s *LinkService) Validate(link *entity.Link) error {
	return link.Validate(s.now())
}

func (s *LinkService) Authorize(link *entity.Link, caller entity.Caller) error {
	return link.Authorize(caller)
}

func (s *LinkService) State(link *entity.Link) entity.LinkState {
	return link.State(s.now())
}

// RecordUse appends an audit row for the attempt regardless of its outcome.
// The first recorded use also stamps link.AccessedAt.
func (s *LinkService) RecordUse(ctx context.Context, link *entity.Link, meta UseMetadata) (*entity.Use, error) {
	use := &entity.Use{
		LinkID:     link.ID,
		Timestamp:  s.now(),
		HTTPMethod: truncate(strings.ToUpper(meta.HTTPMethod), 10),
		SessionKey: truncate(meta.SessionKey, 40),
		RemoteAddr: truncate(meta.RemoteAddr, 100),
		UserAgent:  meta.UserAgent,
	}
	if meta.Err != nil {
		use.Error = truncate(meta.Err.Error(), maxUseErrorLength)
	}
	if len(meta.Extra) > 0 {
		payload, err := json.Marshal(meta.Extra)
		if err != nil {
			return nil, err
		}
		use.Metadata = datatypes.JSON(payload)
	}

	first, err := s.uses.Record(ctx, use)
	if err != nil {
		return nil, err
	}
	if first {
		if err := link.Transition(entity.EventAccess, use.Timestamp); err != nil {
			return nil, err
		}
	}
	return use, nil
}

// Consummate logs the link owner in and permanently consumes the link. The
// caller is expected to have validated and authorized the request already.
// If the authenticator fails nothing is committed and the link stays usable.
func (s *LinkService) Consummate(ctx context.Context, link *entity.Link) (*LoginResult, error) {
	if s.authenticator == nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, ErrUnknownAuthenticator)
	}

	var result *LoginResult
	consumed, err := s.links.Consume(ctx, link.ID, s.now(), func(ctx context.Context, locked *entity.Link) error {
		var loginErr error
		result, loginErr = s.authenticator.Login(ctx, locked.User)
		if loginErr != nil {
			return fmt.Errorf("%w: %w", ErrLoginFailed, loginErr)
		}
		return nil
	})
	if err != nil {
		entry := s.logger.WithField("link_id", link.ID).WithError(err)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrLinkNotFound
		case errors.Is(err, ErrLoginFailed):
			entry.Warn("magic link login failed")
		case errors.Is(err, entity.ErrUserInactive):
			entry.Warn("magic link owner is inactive")
		default:
			entry.Info("magic link consumption rejected")
		}
		return nil, err
	}

	link.LoggedInAt = consumed.LoggedInAt
	link.IsActive = consumed.IsActive
	link.User = consumed.User

	s.logger.WithFields(logrus.Fields{
		"link_id": link.ID,
		"user_id": link.UserID,
	}).Info("magic link consumed")
	return result, nil
}

// Deactivate disables a single link regardless of its other state.
func (s *LinkService) Deactivate(ctx context.Context, id uuid.UUID) (*entity.Link, error) {
	link, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := link.Transition(entity.EventDeactivate, s.now()); err != nil {
		return nil, err
	}
	if err := s.links.Deactivate(ctx, link.ID); err != nil {
		return nil, err
	}
	s.logger.WithField("link_id", link.ID).Info("magic link deactivated")
	return link, nil
}

// DeactivateAll is the emergency kill switch for every active link.
func (s *LinkService) DeactivateAll(ctx context.Context) (int64, error) {
	count, err := s.links.DeactivateAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.WithField("count", count).Warn("all active magic links deactivated")
	return count, nil
}

func (s *LinkService) ListLinks(ctx context.Context, filter repository.LinkFilter) ([]entity.Link, error) {
	return s.links.List(ctx, filter)
}

func (s *LinkService) ListUses(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]entity.Use, error) {
	if _, err := s.FindByID(ctx, linkID); err != nil {
		return nil, err
	}
	return s.uses.ListByLink(ctx, linkID, limit, offset)
}

func (s *LinkService) CountUses(ctx context.Context, linkID uuid.UUID) (int64, error) {
	return s.uses.CountByLink(ctx, linkID)
}

// ReconcileAccessedAt recomputes the denormalized accessed_at from the use
// log.
func (s *LinkService) ReconcileAccessedAt(ctx context.Context, linkID uuid.UUID) (*entity.Link, error) {
	if _, err := s.links.ReconcileAccessedAt(ctx, linkID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return s.FindByID(ctx, linkID)
}

// LinkURL is the absolute landing URL for a link holding its raw token.
func (s *LinkService) LinkURL(link *entity.Link) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/magic-link/" + link.Token
}

func (s *LinkService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *LinkService) defaultExpiry() time.Duration {
	if s.config.DefaultExpiry > 0 {
		return s.config.DefaultExpiry
	}
	return DefaultExpiry
}

func (s *LinkService) defaultRedirect() string {
	if strings.TrimSpace(s.config.DefaultRedirect) != "" {
		return s.config.DefaultRedirect
	}
	return DefaultRedirect
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
