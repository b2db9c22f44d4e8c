package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/waitlist"
	"github.com/charlesng35/rsvp/pkg/mail"
)

// ContainerConfig collects the shared dependencies of the service layer.
type ContainerConfig struct {
	Hub             *realtime.Hub
	Mailer          mail.Mailer
	BaseURL         string
	Location        *time.Location
	DefaultDuration time.Duration
	SocialPlatforms []SocialPlatform
	SocialSecret    string
}

// Container holds one instance of every service, wired to each other.
type Container struct {
	Audit         *AuditService
	Notifications *NotificationService
	Users         *UserService
	Events        *EventService
	RSVPs         *RSVPService
	Posts         *PostService
	Social        *SocialService
}

// NewContainer builds the service layer on top of db.
func NewContainer(db *gorm.DB, cfg ContainerConfig) (*Container, error) {
	if db == nil {
		return nil, errors.New("services: db is required")
	}

	audit, err := NewAuditService(db)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationService(db, cfg.Hub)
	if err != nil {
		return nil, err
	}
	users, err := NewUserService(db, audit, UserServiceConfig{
		Mailer:        cfg.Mailer,
		Notifications: notifications,
		BaseURL:       cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	publisher := NewPublisher(db, PublisherConfig{
		Hub:           cfg.Hub,
		Notifications: notifications,
		Mailer:        cfg.Mailer,
		BaseURL:       cfg.BaseURL,
		Location:      cfg.Location,
	})
	events, err := NewEventService(db, audit, EventServiceConfig{
		DefaultDuration: cfg.DefaultDuration,
		Location:        cfg.Location,
		Locker:          waitlist.NewLocker(),
		Publisher:       publisher,
	})
	if err != nil {
		return nil, err
	}
	rsvps, err := NewRSVPService(db, events, users, audit)
	if err != nil {
		return nil, err
	}
	posts, err := NewPostService(db, audit)
	if err != nil {
		return nil, err
	}

	return &Container{
		Audit:         audit,
		Notifications: notifications,
		Users:         users,
		Events:        events,
		RSVPs:         rsvps,
		Posts:         posts,
		Social:        NewSocialService(cfg.SocialPlatforms, cfg.SocialSecret),
	}, nil
}
