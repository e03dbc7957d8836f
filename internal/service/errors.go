package service

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidRedirect      = errors.New("redirect must be a local path")
	ErrLinkNotFound         = errors.New("not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrLoginFailed          = errors.New("login failed, please try again")
	ErrEmailNotConfigured   = errors.New("email sender not configured")
	ErrUnknownAuthenticator = errors.New("unknown authentication backend")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
)
