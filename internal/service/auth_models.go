package service

import (
	"context"

	"github.com/google/uuid"
)

type CreateLinkInput struct {
	UserID        uuid.UUID
	RedirectTo    string
	ExpirySeconds int
}

// UseMetadata is the request snapshot stored with each use.
type UseMetadata struct {
	HTTPMethod string
	RemoteAddr string
	UserAgent  string
	SessionKey string
	Err        error
	Extra      map[string]any
}

// ClientInfo describes the device a login is performed from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type clientInfoKey struct{}

func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

type LoginResult struct {
	AccessToken      string
	ExpiresIn        int64
	RefreshToken     string
	RefreshExpiresIn int64
	SessionID        uuid.UUID
}
