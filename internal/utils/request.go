package utils

import (
	"net"
	"net/http"
	"strings"
)

// ParseRemoteAddr returns the client address: the first X-Forwarded-For
// entry when present, the connection's remote host otherwise.
func ParseRemoteAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ParseUserAgent(r *http.Request) string {
	return r.Header.Get("User-Agent")
}

// IsLocalRedirect reports whether target is a path on this site. Protocol
// relative and absolute URLs are rejected.
func IsLocalRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	return !strings.ContainsAny(target, "\r\n")
}
