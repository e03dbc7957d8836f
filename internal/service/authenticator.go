package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"magiclink/internal/entity"
	"magiclink/internal/repository"
	"magiclink/internal/utils"

	"github.com/google/uuid"
)

const (
	BackendSession = "session"
	BackendToken   = "token"

	DefaultSessionExpiry = 14 * 24 * time.Hour
	magicLinkDeviceID    = "magic_link"
)

// SessionAuthenticator persists a refresh session and issues an access token
// bound to it. The session row is written through the caller's context so it
// commits or rolls back with the link consumption.
type SessionAuthenticator struct {
	Sessions   repository.SessionRepository
	Users      repository.UserRepository
	Tokens     AccessTokenIssuer
	SessionTTL time.Duration
	Clock      Clock
}

func (a SessionAuthenticator) Login(ctx context.Context, user entity.User) (*LoginResult, error) {
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	refreshToken, err := utils.GenerateRandomToken(48)
	if err != nil {
		return nil, err
	}

	now := a.now()
	ttl := a.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionExpiry
	}
	session := &entity.Session{
		UserID:     user.ID,
		TokenHash:  utils.HashToken(refreshToken),
		DeviceID:   magicLinkDeviceID,
		DeviceName: "Magic link",
		ExpiresAt:  now.Add(ttl),
	}
	client := ClientInfoFromContext(ctx)
	if client.IPAddress != "" {
		ip := truncate(client.IPAddress, 45)
		session.IPAddress = &ip
	}
	if client.UserAgent != "" {
		ua := client.UserAgent
		session.UserAgent = &ua
	}
	if err := a.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := a.Tokens.IssueAccessToken(user, session.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:      accessToken,
		ExpiresIn:        int64(expiresIn.Seconds()),
		RefreshToken:     refreshToken,
		RefreshExpiresIn: int64(ttl.Seconds()),
		SessionID:        session.ID,
	}, nil
}

// Refresh redeems a refresh token issued by Login. The token is rotated and a
// new access token is issued for the same session.
func (a SessionAuthenticator) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}
	now := a.now()
	hash := utils.HashToken(refreshToken)
	session, err := a.Sessions.FindActiveByTokenHash(ctx, hash, now)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidRefreshToken
	}

	if a.Users == nil {
		return nil, ErrUserNotFound
	}
	user, err := a.Users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	newToken, err := utils.GenerateRandomToken(48)
	if err != nil {
		return nil, err
	}
	ttl := a.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionExpiry
	}
	rotated, err := a.Sessions.RotateToken(ctx, session.ID, hash, utils.HashToken(newToken), now.Add(ttl))
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrInvalidRefreshToken
	}

	accessToken, expiresIn, err := a.Tokens.IssueAccessToken(*user, session.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:      accessToken,
		ExpiresIn:        int64(expiresIn.Seconds()),
		RefreshToken:     newToken,
		RefreshExpiresIn: int64(ttl.Seconds()),
		SessionID:        session.ID,
	}, nil
}

func (a SessionAuthenticator) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

// TokenAuthenticator issues a stateless access token only.
type TokenAuthenticator struct {
	Tokens AccessTokenIssuer
}

func (a TokenAuthenticator) Login(ctx context.Context, user entity.User) (*LoginResult, error) {
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	accessToken, expiresIn, err := a.Tokens.IssueAccessToken(user, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(expiresIn.Seconds()),
	}, nil
}

// AuthenticatorRegistry maps backend identifiers to authenticators.
type AuthenticatorRegistry struct {
	mu       sync.RWMutex
	backends map[string]Authenticator
}

func NewAuthenticatorRegistry() *AuthenticatorRegistry {
	return &AuthenticatorRegistry{backends: make(map[string]Authenticator)}
}

func (r *AuthenticatorRegistry) Register(name string, authenticator Authenticator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[strings.ToLower(name)] = authenticator
}

func (r *AuthenticatorRegistry) Resolve(name string) (Authenticator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authenticator, ok := r.backends[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownAuthenticator, name, strings.Join(r.names(), ", "))
	}
	return authenticator, nil
}

func (r *AuthenticatorRegistry) names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
