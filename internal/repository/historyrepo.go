package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultec/vaultcore/internal/model"
)

// RestoredFields is the credential state applied by a restore.
type RestoredFields struct {
	SecretEnc string
	Email     string
	Username  string
	URL       string
}

// HistoryRepository is the append-only change ledger for credentials.
// Entries are never mutated; removal happens only via Prune.
type HistoryRepository interface {
	// Append records one immutable snapshot.
	Append(ctx context.Context, e *model.HistoryEntry) error

	// Get returns a single entry by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.HistoryEntry, error)

	// ListByCredential returns entries newest-first.
	ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]model.HistoryEntry, error)

	// ApplyRestore atomically, in one transaction against the credential row:
	// appends an UPDATED snapshot of the current state, overwrites the
	// credential's secret/email/username/url with the archived values, and
	// appends a RESTORED snapshot of the applied values.
	ApplyRestore(ctx context.Context, credentialID uuid.UUID, restored RestoredFields, actor uuid.UUID) error

	// Prune keeps the keepLastN newest entries for a credential and deletes
	// the rest, returning the number deleted. No-op when at or under the cap.
	Prune(ctx context.Context, credentialID uuid.UUID, keepLastN int) (int, error)
}
