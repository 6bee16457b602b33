// Package service contains the application services of the credential
// security engine: vault CRUD, audit analysis, breach scanning and the
// change-history ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/identity"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
	"github.com/vaultec/vaultcore/internal/secrets"
)

// CredentialInput is the caller-supplied shape for create/update.
type CredentialInput struct {
	Name     string
	Secret   string // plaintext; encrypted before any persistence
	URL      string
	Username string
	Email    string
	Notes    string
	LogoURL  string
	Favorite bool
}

// CredentialService manages stored credentials. Secrets are encrypted before
// they reach storage; history recording is best-effort relative to the write.
type CredentialService interface {
	// Create validates, encrypts and stores a new credential.
	Create(ctx context.Context, in CredentialInput) (*model.Credential, error)
	// Update overwrites a credential after snapshotting its prior state.
	Update(ctx context.Context, id uuid.UUID, in CredentialInput) (*model.Credential, error)
	// Delete removes a credential and, via cascade, its history.
	Delete(ctx context.Context, id uuid.UUID) error
	// Get returns one credential without decrypting its secret.
	Get(ctx context.Context, id uuid.UUID) (*model.Credential, error)
	// Reveal returns the decrypted secret of one credential.
	Reveal(ctx context.Context, id uuid.UUID) (string, error)
	// List returns the caller's credentials narrowed by filter.
	List(ctx context.Context, f model.Filter) ([]model.Credential, error)
	// Count returns how many credentials the caller owns.
	Count(ctx context.Context) (int, error)
	// SetFavorite flips the favorite flag.
	SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error
}

type CredentialServiceImpl struct {
	resolver identity.Resolver
	creds    repository.CredentialRepository
	history  repository.HistoryRepository
	cipher   *secrets.Cipher
	keepN    int
	log      *zap.Logger
	now      func() time.Time
}

// NewCredentialService constructs CredentialService with required dependencies.
func NewCredentialService(
	resolver identity.Resolver,
	creds repository.CredentialRepository,
	history repository.HistoryRepository,
	cipher *secrets.Cipher,
	keepN int,
	log *zap.Logger,
) *CredentialServiceImpl {
	if keepN <= 0 {
		keepN = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialServiceImpl{
		resolver: resolver,
		creds:    creds,
		history:  history,
		cipher:   cipher,
		keepN:    keepN,
		log:      log,
		now:      time.Now,
	}
}

const (
	maxNameLen   = 255
	maxSecretLen = 1024
	maxNotesLen  = 4096
)

func validateInput(in CredentialInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: empty name", errs.ErrValidation)
	}
	if len(in.Name) > maxNameLen {
		return fmt.Errorf("%w: name too long", errs.ErrValidation)
	}
	if in.Secret == "" {
		return fmt.Errorf("%w: empty secret", errs.ErrValidation)
	}
	if len(in.Secret) > maxSecretLen {
		return fmt.Errorf("%w: secret too long", errs.ErrValidation)
	}
	if len(in.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes too long", errs.ErrValidation)
	}
	return nil
}

// Create validates input, encrypts the secret and inserts the credential.
// The CREATED ledger entry is appended best-effort: its failure never fails
// the create.
func (s *CredentialServiceImpl) Create(ctx context.Context, in CredentialInput) (*model.Credential, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	enc, err := s.cipher.Encrypt(in.Secret)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := &model.Credential{
		ID:               id,
		UserID:           userID,
		Name:             in.Name,
		URL:              in.URL,
		Username:         in.Username,
		Email:            in.Email,
		Notes:            in.Notes,
		LogoURL:          in.LogoURL,
		Favorite:         in.Favorite,
		SecretEnc:        enc,
		LastSecretChange: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.creds.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: create credential: %v", errs.ErrOperationFailed, err)
	}

	s.recordHistory(ctx, &model.HistoryEntry{
		CredentialID: c.ID,
		OldSecretEnc: c.SecretEnc,
		OldEmail:     c.Email,
		OldUsername:  c.Username,
		OldURL:       c.URL,
		ChangeType:   model.ChangeCreated,
		ChangedBy:    userID,
	})
	return c, nil
}

// Update snapshots the prior state (best-effort), then overwrites the
// credential. LastSecretChange moves only when the plaintext actually changed.
func (s *CredentialServiceImpl) Update(ctx context.Context, id uuid.UUID, in CredentialInput) (*model.Credential, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: empty id", errs.ErrValidation)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	existing, err := s.creds.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, &model.HistoryEntry{
		CredentialID: existing.ID,
		OldSecretEnc: existing.SecretEnc,
		OldEmail:     existing.Email,
		OldUsername:  existing.Username,
		OldURL:       existing.URL,
		ChangeType:   model.ChangeUpdated,
		ChangedBy:    userID,
	})

	enc, err := s.cipher.Encrypt(in.Secret)
	if err != nil {
		return nil, err
	}

	secretChanged := true
	if prior, derr := s.cipher.Decrypt(existing.SecretEnc); derr == nil {
		secretChanged = prior != in.Secret
	}

	updated := *existing
	updated.Name = in.Name
	updated.URL = in.URL
	updated.Username = in.Username
	updated.Email = in.Email
	updated.Notes = in.Notes
	updated.LogoURL = in.LogoURL
	updated.Favorite = in.Favorite
	updated.SecretEnc = enc
	if secretChanged {
		updated.LastSecretChange = s.now()
	}
	if err := s.creds.Update(ctx, &updated); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update credential: %v", errs.ErrOperationFailed, err)
	}

	s.pruneHistory(ctx, id)
	return &updated, nil
}

// Delete removes the credential; the FK cascades its history.
func (s *CredentialServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return s.creds.Delete(ctx, userID, id)
}

// Get returns one credential, ciphertext untouched.
func (s *CredentialServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Credential, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.creds.Get(ctx, userID, id)
}

// Reveal decrypts a single credential's secret for display.
func (s *CredentialServiceImpl) Reveal(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.cipher.Decrypt(c.SecretEnc)
}

// List returns the caller's credentials newest-updated first.
func (s *CredentialServiceImpl) List(ctx context.Context, f model.Filter) ([]model.Credential, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.creds.List(ctx, userID, f)
}

// Count returns the caller's credential count.
func (s *CredentialServiceImpl) Count(ctx context.Context) (int, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	return s.creds.Count(ctx, userID)
}

// SetFavorite flips the favorite flag.
func (s *CredentialServiceImpl) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return s.creds.SetFavorite(ctx, userID, id, favorite)
}

// recordHistory appends a ledger entry, logging but never raising on failure:
// history is an audit nicety, not a transactional requirement.
func (s *CredentialServiceImpl) recordHistory(ctx context.Context, e *model.HistoryEntry) {
	if err := s.history.Append(ctx, e); err != nil {
		s.log.Warn("history append failed",
			zap.Stringer("credential", e.CredentialID),
			zap.String("change", string(e.ChangeType)),
			zap.Error(err),
		)
	}
}

// pruneHistory enforces retention, logging but never raising on failure.
func (s *CredentialServiceImpl) pruneHistory(ctx context.Context, credentialID uuid.UUID) {
	if _, err := s.history.Prune(ctx, credentialID, s.keepN); err != nil {
		s.log.Warn("history prune failed",
			zap.Stringer("credential", credentialID),
			zap.Error(err),
		)
	}
}
