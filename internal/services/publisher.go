package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/waitlist"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/mail"
	"github.com/charlesng35/rsvp/pkg/metrics"
)

// RSVPStreamPayload is broadcast on the events.rsvps stream after every
// committed change to an event's RSVP list.
type RSVPStreamPayload struct {
	EventID    string   `json:"event_id"`
	Version    int64    `json:"version"`
	RSVPID     string   `json:"rsvp_id,omitempty"`
	Attending  int      `json:"attending"`
	Waitlisted int      `json:"waitlisted"`
	Promoted   []string `json:"promoted,omitempty"`
	Demoted    []string `json:"demoted,omitempty"`
}

// Publisher fans waitlist transitions out to realtime subscribers, in-app
// notifications and email. Every channel is best effort: the change is
// already committed when it runs.
type Publisher struct {
	db            *gorm.DB
	hub           *realtime.Hub
	notifications *NotificationService
	mailer        mail.Mailer
	baseURL       string
	loc           *time.Location
	log           *zap.Logger
}

// PublisherConfig wires the optional outputs of a Publisher.
type PublisherConfig struct {
	Hub           *realtime.Hub
	Notifications *NotificationService
	Mailer        mail.Mailer
	BaseURL       string
	Location      *time.Location
}

// NewPublisher builds a Publisher. Nil outputs are skipped.
func NewPublisher(db *gorm.DB, cfg PublisherConfig) *Publisher {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{
		db:            db,
		hub:           cfg.Hub,
		notifications: cfg.Notifications,
		mailer:        cfg.Mailer,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		loc:           loc,
		log:           logger.WithModule("rsvp"),
	}
}

// publish reports a committed mutation. The RSVP the caller acted on
// (subject) is announced on the stream but never notified as a transition.
func (p *Publisher) publish(ctx context.Context, event *models.Event, streamEvent, subject string, result waitlist.Result) {
	if p == nil || event == nil {
		return
	}

	promoted := without(result.Promoted, subject)
	demoted := without(result.Demoted, subject)

	metrics.WaitlistPromotions.Add(float64(len(promoted)))
	metrics.WaitlistDemotions.Add(float64(len(demoted)))

	if p.hub != nil {
		msg := realtime.Message{
			Event: streamEvent,
			Data: RSVPStreamPayload{
				EventID:    event.ID,
				Version:    event.Version,
				RSVPID:     subject,
				Attending:  result.Active,
				Waitlisted: result.Waitlisted,
				Promoted:   promoted,
				Demoted:    demoted,
			},
		}
		p.hub.BroadcastStream(realtime.StreamEventRSVPs, msg)
		p.hub.BroadcastStream(realtime.EventStream(event.ID), msg)
	}

	if len(promoted) == 0 && len(demoted) == 0 {
		return
	}

	attendees, err := p.attendees(ctx, event, append(append([]string{}, promoted...), demoted...))
	if err != nil {
		p.log.Warn("load promoted attendees", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	for _, id := range promoted {
		if user, ok := attendees[id]; ok {
			p.notify(ctx, event, user, true)
		}
	}
	for _, id := range demoted {
		if user, ok := attendees[id]; ok {
			p.notify(ctx, event, user, false)
		}
	}
}

// attendees maps RSVP IDs to their users, skipping the anonymous placeholder.
func (p *Publisher) attendees(ctx context.Context, event *models.Event, rsvpIDs []string) (map[string]*models.User, error) {
	userByRSVP := make(map[string]string, len(rsvpIDs))
	for i := range event.RSVPs {
		for _, id := range rsvpIDs {
			if event.RSVPs[i].ID == id {
				userByRSVP[id] = event.RSVPs[i].UserID
			}
		}
	}
	if len(userByRSVP) == 0 {
		return nil, nil
	}

	userIDs := make([]string, 0, len(userByRSVP))
	for _, uid := range userByRSVP {
		userIDs = append(userIDs, uid)
	}

	var users []models.User
	if err := p.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		if !users[i].IsAnonymousUser() {
			byID[users[i].ID] = &users[i]
		}
	}

	out := make(map[string]*models.User, len(userByRSVP))
	for rsvpID, uid := range userByRSVP {
		if user, ok := byID[uid]; ok {
			out[rsvpID] = user
		}
	}
	return out, nil
}

func (p *Publisher) notify(ctx context.Context, event *models.Event, user *models.User, promoted bool) {
	change := WaitlistChange{
		UserID:     user.ID,
		EventID:    event.ID,
		EventTitle: event.Title(p.loc),
		Link:       fmt.Sprintf("%s/events/%s", p.baseURL, event.ID),
		Promoted:   promoted,
	}

	if p.notifications != nil {
		if _, err := p.notifications.NotifyWaitlistChange(ctx, change); err != nil {
			p.log.Warn("create waitlist notification", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if p.mailer != nil && promoted {
		_, body := change.Text()
		msg := mail.Message{
			To:      []string{user.Email},
			Subject: fmt.Sprintf("[RSVP] %s: you're in!", change.EventTitle),
			Body:    fmt.Sprintf("Hi %s,\n\n%s\n\n%s\n", user.NickName(), body, change.Link),
		}
		if err := p.mailer.Send(ctx, msg); err != nil {
			p.log.Warn("send promotion email", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
}

func without(ids []string, skip string) []string {
	if skip == "" {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
