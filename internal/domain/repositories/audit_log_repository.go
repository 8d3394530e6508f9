package repositories

import (
	"context"

	"github.com/medrecords/backend/internal/domain/entities"
)

// AuditLogRepository persists audit entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entities.AuditLog) error
}
