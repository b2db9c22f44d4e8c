package models

import "gorm.io/datatypes"

// AuditLog records who changed which event, RSVP or user and how it went.
type AuditLog struct {
	BaseModel

	ActorID    *string        `gorm:"type:uuid;index" json:"actor_id"`
	ActorEmail string         `json:"actor_email"`
	Action     string         `gorm:"not null;index" json:"action"`
	Resource   string         `gorm:"index" json:"resource"`
	ResourceID string         `gorm:"index" json:"resource_id"`
	Result     string         `gorm:"not null" json:"result"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Metadata   datatypes.JSON `json:"metadata"`
}
