package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Event is a scheduled gathering with an optional attendance cap.
type Event struct {
	BaseModel

	Name        string     `gorm:"not null" json:"name"`
	Slug        string     `gorm:"index" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	StartsAt    time.Time  `gorm:"not null;index" json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	// RSVPLimit caps active attendees. Zero means unlimited.
	RSVPLimit int  `gorm:"default:0" json:"rsvp_limit"`
	Archived  bool `gorm:"default:false;index" json:"archived"`
	Cancelled bool `gorm:"default:false" json:"cancelled"`

	CreatedByID *string `gorm:"type:uuid;index" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// Version is bumped on every RSVP list mutation and guards concurrent writers.
	Version int64 `gorm:"not null;default:1" json:"version"`

	RSVPs []RSVP `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the identifier and the initial version.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if err := e.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if e.Version == 0 {
		e.Version = 1
	}
	return nil
}

// End returns the explicit end time or StartsAt plus the default duration.
func (e *Event) End(defaultDuration time.Duration) time.Time {
	if e.EndsAt != nil && !e.EndsAt.IsZero() {
		return *e.EndsAt
	}
	return e.StartsAt.Add(defaultDuration)
}

// Title renders the event name with its local start date.
func (e *Event) Title(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s - %s", e.Name, e.StartsAt.In(loc).Format("Mon, Jan 2"))
}

// CanEdit reports whether user may modify the event.
func (e *Event) CanEdit(user *User) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return e.CreatedByID != nil && *e.CreatedByID == user.ID
}

// CanRSVP reports whether user may add RSVPs to the event.
func (e *Event) CanRSVP(user *User) bool {
	if user != nil && user.IsAdmin() {
		return true
	}
	return !e.Archived && !e.Cancelled
}
