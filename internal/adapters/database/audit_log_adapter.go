package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

// AuditLogAdapter implements AuditLogRepository
type AuditLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAuditLogAdapter creates a new audit log adapter
func NewAuditLogAdapter(client *postgres.Client) repositories.AuditLogRepository {
	return &AuditLogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts an audit entry
func (a *AuditLogAdapter) Create(ctx context.Context, entry *entities.AuditLog) error {
	var details interface{}
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}

	var userID interface{}
	if entry.UserID != "" {
		userID = entry.UserID
	}

	query, args, err := a.db.Insert("audit_logs").Rows(goqu.Record{
		"id":        entry.ID,
		"user_id":   userID,
		"action":    entry.Action,
		"timestamp": entry.Timestamp,
		"details":   details,
	}).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create audit log", err)
	}
	return nil
}
