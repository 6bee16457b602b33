package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/identity"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
)

// HistoryService exposes the change ledger: listing, restore and retention.
type HistoryService interface {
	// List returns a credential's entries newest-first, after an ownership check.
	List(ctx context.Context, credentialID uuid.UUID) ([]model.HistoryEntry, error)
	// Restore re-applies an archived state. Exactly two new entries are
	// recorded: an UPDATED snapshot of the pre-restore state and a RESTORED
	// snapshot of the applied one; the whole sequence is atomic.
	Restore(ctx context.Context, historyID uuid.UUID) error
	// Prune enforces retention for one credential. Never raises: a cleanup
	// failure is logged and swallowed.
	Prune(ctx context.Context, credentialID uuid.UUID, keepLastN int)
}

type HistoryServiceImpl struct {
	resolver identity.Resolver
	creds    repository.CredentialRepository
	history  repository.HistoryRepository
	log      *zap.Logger
}

// NewHistoryService constructs HistoryService with required dependencies.
func NewHistoryService(
	resolver identity.Resolver,
	creds repository.CredentialRepository,
	history repository.HistoryRepository,
	log *zap.Logger,
) *HistoryServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryServiceImpl{resolver: resolver, creds: creds, history: history, log: log}
}

// List returns the ledger of one owned credential, newest-first.
func (s *HistoryServiceImpl) List(ctx context.Context, credentialID uuid.UUID) ([]model.HistoryEntry, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	// Ownership gate before touching the ledger.
	if _, err := s.creds.Get(ctx, userID, credentialID); err != nil {
		return nil, err
	}
	return s.history.ListByCredential(ctx, credentialID)
}

// Restore applies the archived values of one history entry back onto its
// credential through the atomic three-step ledger sequence.
func (s *HistoryServiceImpl) Restore(ctx context.Context, historyID uuid.UUID) error {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if historyID == uuid.Nil {
		return fmt.Errorf("%w: empty history id", errs.ErrValidation)
	}

	entry, err := s.history.Get(ctx, historyID)
	if err != nil {
		return err
	}

	// The entry exists, so its credential does too (history cascades on
	// delete); an owner-scoped miss therefore means someone else's record.
	if _, err := s.creds.Get(ctx, userID, entry.CredentialID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrUnauthorized
		}
		return err
	}

	restored := repository.RestoredFields{
		SecretEnc: entry.OldSecretEnc,
		Email:     entry.OldEmail,
		Username:  entry.OldUsername,
		URL:       entry.OldURL,
	}
	if err := s.history.ApplyRestore(ctx, entry.CredentialID, restored, userID); err != nil {
		return fmt.Errorf("%w: restore: %v", errs.ErrOperationFailed, err)
	}
	return nil
}

// Prune deletes everything beyond the keepLastN newest entries.
func (s *HistoryServiceImpl) Prune(ctx context.Context, credentialID uuid.UUID, keepLastN int) {
	deleted, err := s.history.Prune(ctx, credentialID, keepLastN)
	if err != nil {
		s.log.Warn("history prune failed",
			zap.Stringer("credential", credentialID),
			zap.Error(err),
		)
		return
	}
	if deleted > 0 {
		s.log.Info("history pruned",
			zap.Stringer("credential", credentialID),
			zap.Int("deleted", deleted),
		)
	}
}
