package dto

import (
	"encoding/json"
	"time"

	"magiclink/internal/entity"
)

type RequestLinkRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,max=255"`
}

type CreateLinkRequest struct {
	UserID        string `json:"user_id" validate:"required,uuid"`
	RedirectTo    string `json:"redirect_to" validate:"omitempty,max=255"`
	ExpirySeconds int    `json:"expiry_seconds" validate:"omitempty,min=1,max=2592000"`
	SendEmail     bool   `json:"send_email"`
}

type CreateLinkResponse struct {
	Link  LinkResponse `json:"link"`
	URL   string       `json:"url"`
	Token string       `json:"token"`
}

// LandingResponse is rendered on GET so that link scanners never trigger the
// login. The client confirms by POSTing to ConfirmURL.
type LandingResponse struct {
	LinkID     string    `json:"link_id"`
	ConfirmURL string    `json:"confirm_url"`
	RedirectTo string    `json:"redirect_to"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type LinkResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	RedirectTo string     `json:"redirect_to"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AccessedAt *time.Time `json:"accessed_at,omitempty"`
	LoggedInAt *time.Time `json:"logged_in_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	State      string     `json:"state"`
	Valid      bool       `json:"valid"`
}

func LinkResponseFromEntity(link *entity.Link, now time.Time) LinkResponse {
	state := link.State(now)
	return LinkResponse{
		ID:         link.ID.String(),
		UserID:     link.UserID.String(),
		RedirectTo: link.RedirectTo,
		CreatedAt:  link.CreatedAt,
		ExpiresAt:  link.ExpiresAt,
		AccessedAt: link.AccessedAt,
		LoggedInAt: link.LoggedInAt,
		IsActive:   link.IsActive,
		State:      string(state),
		Valid:      state == entity.StateFresh || state == entity.StateAccessed,
	}
}

func LinkResponsesFromEntities(links []entity.Link, now time.Time) []LinkResponse {
	responses := make([]LinkResponse, 0, len(links))
	for i := range links {
		responses = append(responses, LinkResponseFromEntity(&links[i], now))
	}
	return responses
}

type UseResponse struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	HTTPMethod string         `json:"http_method"`
	SessionKey string         `json:"session_key,omitempty"`
	RemoteAddr string         `json:"remote_addr"`
	UserAgent  string         `json:"user_agent"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Summary    string         `json:"summary"`
	LoggedIn   bool           `json:"logged_in"`
}

func UseResponseFromEntity(use *entity.Use, loggedIn bool) UseResponse {
	response := UseResponse{
		ID:         use.ID.String(),
		Timestamp:  use.Timestamp,
		HTTPMethod: use.HTTPMethod,
		SessionKey: use.SessionKey,
		RemoteAddr: use.RemoteAddr,
		UserAgent:  use.UserAgent,
		Error:      use.Error,
		Summary:    use.String(),
		LoggedIn:   loggedIn,
	}
	if len(use.Metadata) > 0 {
		var metadata map[string]any
		if err := json.Unmarshal(use.Metadata, &metadata); err == nil {
			response.Metadata = metadata
		}
	}
	return response
}

// UseResponsesFromEntities expects uses newest first. The login is attributed
// to the latest successful POST at or before loggedInAt whose request did not
// go on to record a failure.
func UseResponsesFromEntities(uses []entity.Use, loggedInAt *time.Time) []UseResponse {
	failed := map[string]bool{}
	for i := range uses {
		if id := uses[i].RequestID(); id != "" && !uses[i].Succeeded() {
			failed[id] = true
		}
	}

	responses := make([]UseResponse, 0, len(uses))
	marked := loggedInAt == nil
	for i := range uses {
		use := &uses[i]
		loggedIn := !marked && use.HTTPMethod == "POST" && use.Succeeded() &&
			!use.Timestamp.After(*loggedInAt) && !failed[use.RequestID()]
		if loggedIn {
			marked = true
		}
		responses = append(responses, UseResponseFromEntity(use, loggedIn))
	}
	return responses
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}
