package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

// auditTrail writes audit entries. A failed write is logged and never fails the caller.
type auditTrail struct {
	repo repositories.AuditLogRepository
}

func (a auditTrail) record(ctx context.Context, userID, action string, details map[string]any) {
	if a.repo == nil {
		return
	}
	entry := entities.NewAuditLog(uuid.NewString(), userID, action, details)
	if err := a.repo.Create(ctx, entry); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("action", action).
			Str("user_id", userID).
			Msg("failed to write audit log")
	}
}
