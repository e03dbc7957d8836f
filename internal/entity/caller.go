package entity

import "github.com/google/uuid"

// Caller identifies who is hitting a link. The zero value is anonymous.
type Caller struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Role      string
}

func Anonymous() Caller {
	return Caller{}
}

func (c Caller) IsAuthenticated() bool {
	return c.UserID != uuid.Nil
}
