package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Use records one access attempt against a Link, successful or not.
// Rows are append-only.
//
// The usual pattern is two rows per link: a GET rendering the landing page
// and a POST performing the login.
type Use struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	LinkID uuid.UUID `gorm:"type:uuid;not null;index"`
	Link   Link      `gorm:"constraint:OnDelete:CASCADE"`

	Timestamp  time.Time `gorm:"not null;index"`
	HTTPMethod string    `gorm:"type:varchar(10)"`
	SessionKey string    `gorm:"type:varchar(40)"`
	RemoteAddr string    `gorm:"type:varchar(100)"`
	UserAgent  string    `gorm:"type:text"`
	Error      string    `gorm:"type:varchar(100)"`

	Metadata datatypes.JSON
}

func (Use) TableName() string {
	return "magic_link_uses"
}

func (u *Use) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *Use) Succeeded() bool {
	return u.Error == ""
}

// RequestID returns the request_id metadata key, or "" when absent. Uses
// recorded while serving the same request share it.
func (u *Use) RequestID() string {
	if len(u.Metadata) == 0 {
		return ""
	}
	var meta struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(u.Metadata, &meta); err != nil {
		return ""
	}
	return meta.RequestID
}

func (u *Use) String() string {
	if u.Error != "" {
		return fmt.Sprintf("magic link (%s) failed at %s", u.LinkID, u.Timestamp.Format(time.RFC3339))
	}
	return fmt.Sprintf("magic link (%s) used at %s", u.LinkID, u.Timestamp.Format(time.RFC3339))
}
