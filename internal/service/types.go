package service

import (
	"context"
	"time"

	"magiclink/internal/entity"

	"github.com/google/uuid"
)

const (
	DefaultExpiry   = 300 * time.Second
	DefaultRedirect = "/"
)

type LinkConfig struct {
	DefaultExpiry   time.Duration
	DefaultRedirect string
	BaseURL         string
}

// Authenticator establishes an authenticated session for user. It is called
// inside the consumption transaction; an error rolls the consumption back.
type Authenticator interface {
	Login(ctx context.Context, user entity.User) (*LoginResult, error)
}

type EmailSender interface {
	SendMagicLink(ctx context.Context, email string, url string, expiresAt time.Time) error
}

type AccessTokenIssuer interface {
	IssueAccessToken(user entity.User, sessionID uuid.UUID) (string, time.Duration, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
