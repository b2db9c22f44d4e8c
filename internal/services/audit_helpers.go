package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

// actorEntry prefills an AuditEntry with the acting user.
func actorEntry(actor *models.User, action, resource, resourceID string) AuditEntry {
	entry := AuditEntry{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Result:     "success",
	}
	if actor != nil {
		entry.ActorID = stringPtr(actor.ID)
		entry.ActorEmail = actor.Email
	}
	return entry
}
