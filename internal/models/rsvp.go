package models

// RSVP records one attendee's response to an event.
//
// CreatedAt is the queue position: earlier RSVPs are admitted first. Waitlisted
// is derived by the waitlist controller and never set by clients.
type RSVP struct {
	BaseModel

	EventID string `gorm:"type:uuid;not null;index:idx_rsvps_event_user" json:"event_id"`
	UserID  string `gorm:"type:uuid;not null;index:idx_rsvps_event_user" json:"user_id"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	RSVPByID *string `gorm:"type:uuid" json:"rsvp_by_id,omitempty"`
	RSVPBy   *User   `gorm:"foreignKey:RSVPByID" json:"rsvp_by,omitempty"`

	Note       string `gorm:"type:text" json:"note"`
	Cancelled  bool   `gorm:"default:false" json:"cancelled"`
	Waitlisted bool   `gorm:"default:false" json:"waitlisted"`
}

// TableName keeps the plural table name stable for the upper-case acronym.
func (RSVP) TableName() string {
	return "rsvps"
}

// CanCancel reports whether user may withdraw this RSVP.
func (r *RSVP) CanCancel(user *User) bool {
	if r.RSVPByID == nil {
		return true
	}
	if user == nil {
		return false
	}
	return user.IsAdmin() || user.ID == r.UserID || user.ID == *r.RSVPByID
}
