// Package repository declares storage interfaces implemented by the postgres package.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultec/vaultcore/internal/model"
)

// CredentialRepository provides owner-scoped access to stored credentials.
type CredentialRepository interface {
	// Create inserts a new credential row.
	Create(ctx context.Context, c *model.Credential) error

	// Update overwrites the mutable fields of an existing credential.
	Update(ctx context.Context, c *model.Credential) error

	// Delete removes a credential; history rows cascade.
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// Get returns one credential owned by userID.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Credential, error)

	// List returns the user's credentials, newest-updated first, narrowed by filter.
	List(ctx context.Context, userID uuid.UUID, f model.Filter) ([]model.Credential, error)

	// Count returns the number of credentials the user owns.
	Count(ctx context.Context, userID uuid.UUID) (int, error)

	// SetFavorite flips the favorite flag.
	SetFavorite(ctx context.Context, userID, id uuid.UUID, favorite bool) error

	// SetSecurityScore persists an audit score and needs-update flag for one row.
	SetSecurityScore(ctx context.Context, id uuid.UUID, score int, needsUpdate bool) error

	// SetBreachStatus persists the outcome of a breach check for one row.
	SetBreachStatus(ctx context.Context, id uuid.UUID, breached bool, count int, checkedAt time.Time) error

	// BreachedList returns breached credentials ordered by breach count descending.
	BreachedList(ctx context.Context, userID uuid.UUID) ([]model.Credential, error)

	// LastBreachCheck returns the most recent breach-check time across the
	// user's credentials, or nil if none was ever checked.
	LastBreachCheck(ctx context.Context, userID uuid.UUID) (*time.Time, error)
}
