package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message for one member. Waitlist notices point at
// the event they concern through EventID.
type Notification struct {
	BaseModel

	UserID  string  `gorm:"type:uuid;index:idx_notifications_user_read" json:"user_id"`
	EventID *string `gorm:"type:uuid;index" json:"event_id,omitempty"`

	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Severity  string         `gorm:"type:varchar(32);default:'info'" json:"severity"`
	ActionURL string         `gorm:"type:text" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index:idx_notifications_user_read" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
