package handler

import (
	"net/http"
	"time"
)

type CookieConfig struct {
	RefreshName string
	AccessName  string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		RefreshName: "refresh_token",
		AccessName:  "access_token",
		Secure:      true,
		SameSite:    http.SameSiteLaxMode,
	}
}

func (c CookieConfig) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) cookie(name string, value string, expiresIn int64, now time.Time) *http.Cookie {
	maxAge := int(expiresIn)
	if maxAge < 0 {
		maxAge = 0
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Expires:  now.Add(time.Duration(expiresIn) * time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}
