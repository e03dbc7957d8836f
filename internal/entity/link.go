package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Link is a single-use, time-bound login token bound to one user.
//
// Only the SHA-256 hash of the token is persisted. The raw token is held in
// Token for the lifetime of the value returned by the registry and is never
// read back from storage.
type Link struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash  string `gorm:"type:varchar(64);not null;uniqueIndex"`
	RedirectTo string `gorm:"type:varchar(255);not null"`

	CreatedAt  time.Time `gorm:"not null;index"`
	ExpiresAt  time.Time `gorm:"not null"`
	AccessedAt *time.Time
	LoggedInAt *time.Time
	IsActive   bool `gorm:"not null"`

	Token string `gorm:"-"`
}

func (Link) TableName() string {
	return "magic_links"
}

func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *Link) String() string {
	return fmt.Sprintf("magic link (%s) for user %s", l.ID, l.UserID)
}

type LinkState string

const (
	StateFresh       LinkState = "fresh"
	StateAccessed    LinkState = "accessed"
	StateConsumed    LinkState = "consumed"
	StateDeactivated LinkState = "deactivated"
	StateExpired     LinkState = "expired"
)

type LinkEvent string

const (
	EventAccess     LinkEvent = "access"
	EventConsume    LinkEvent = "consume"
	EventDeactivate LinkEvent = "deactivate"
)

var ErrInvalidTransition = errors.New("invalid link transition")

// State derives the lifecycle state at now. Expired is never stored.
// A consumed link is also inactive; consumption takes precedence so the
// reported state names the event that actually closed the link.
func (l *Link) State(now time.Time) LinkState {
	switch {
	case l.LoggedInAt != nil:
		return StateConsumed
	case !l.IsActive:
		return StateDeactivated
	case !now.Before(l.ExpiresAt):
		return StateExpired
	case l.AccessedAt != nil:
		return StateAccessed
	default:
		return StateFresh
	}
}

func (l *Link) HasExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

func (l *Link) HasBeenUsed() bool {
	return l.LoggedInAt != nil
}

// IsValid reports is_active && now < expires_at && logged_in_at == nil.
func (l *Link) IsValid(now time.Time) bool {
	switch l.State(now) {
	case StateFresh, StateAccessed:
		return true
	}
	return false
}

// Validate reports why the link cannot be used at now, checking inactive,
// expired and already-used in that order. It has no side effects.
func (l *Link) Validate(now time.Time) error {
	switch l.State(now) {
	case StateConsumed:
		return ErrLinkUsed
	case StateDeactivated:
		return ErrLinkInactive
	case StateExpired:
		return ErrLinkExpired
	}
	return nil
}

// Authorize rejects an authenticated caller who is not the link owner.
// Anonymous callers pass: the confirm step is their authentication event.
func (l *Link) Authorize(caller Caller) error {
	if caller.IsAuthenticated() && caller.UserID != l.UserID {
		return ErrPermissionDenied
	}
	return nil
}

// Transition applies event at now to the in-memory link.
//
// Access is accepted in every state and only stamps AccessedAt the first
// time. Consume requires a valid link. Deactivate is idempotent.
func (l *Link) Transition(event LinkEvent, now time.Time) error {
	state := l.State(now)
	switch event {
	case EventAccess:
		if l.AccessedAt == nil {
			ts := now
			l.AccessedAt = &ts
		}
		return nil
	case EventConsume:
		if state != StateFresh && state != StateAccessed {
			return fmt.Errorf("%w: %s -> %s: %w", ErrInvalidTransition, state, StateConsumed, l.Validate(now))
		}
		ts := now
		l.LoggedInAt = &ts
		l.IsActive = false
		return nil
	case EventDeactivate:
		l.IsActive = false
		return nil
	}
	return fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
}
