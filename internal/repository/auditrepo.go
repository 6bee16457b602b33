package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultec/vaultcore/internal/model"
)

// AuditRepository is the append-only log of vault audit snapshots.
type AuditRepository interface {
	// Append records one aggregate snapshot.
	Append(ctx context.Context, s *model.AuditSnapshot) error

	// Latest returns the most recent snapshot for a user, or ErrNotFound.
	Latest(ctx context.Context, userID uuid.UUID) (*model.AuditSnapshot, error)
}
