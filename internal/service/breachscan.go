package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vaultec/vaultcore/internal/breach"
	"github.com/vaultec/vaultcore/internal/identity"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
	"github.com/vaultec/vaultcore/internal/secrets"
)

// Checker is the breach-oracle port, implemented by breach.Client.
type Checker interface {
	Check(ctx context.Context, plaintext string) (breach.Result, error)
}

// BreachService checks stored credentials against the breach corpus.
type BreachService interface {
	// CheckCredential checks one credential and persists the outcome.
	CheckCredential(ctx context.Context, id uuid.UUID) (breach.Result, error)
	// ScanAll sequentially checks every credential of the caller with a fixed
	// delay between remote calls, continuing past per-item failures.
	ScanAll(ctx context.Context) (model.ScanResult, error)
	// Stats summarizes persisted breach state.
	Stats(ctx context.Context) (model.BreachStats, error)
}

type BreachServiceImpl struct {
	resolver identity.Resolver
	creds    repository.CredentialRepository
	cipher   *secrets.Cipher
	oracle   Checker
	delay    time.Duration
	log      *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBreachService constructs BreachService with required dependencies.
func NewBreachService(
	resolver identity.Resolver,
	creds repository.CredentialRepository,
	cipher *secrets.Cipher,
	oracle Checker,
	delay time.Duration,
	log *zap.Logger,
) *BreachServiceImpl {
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BreachServiceImpl{
		resolver: resolver,
		creds:    creds,
		cipher:   cipher,
		oracle:   oracle,
		delay:    delay,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CheckCredential checks a single credential. An oracle failure is downgraded
// to the safe default (not breached), persisted and logged, so the surrounding
// flow never fails on it; the log is the "check failed" signal.
func (s *BreachServiceImpl) CheckCredential(ctx context.Context, id uuid.UUID) (breach.Result, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return breach.Result{}, err
	}
	c, err := s.creds.Get(ctx, userID, id)
	if err != nil {
		return breach.Result{}, err
	}
	plaintext, err := s.cipher.Decrypt(c.SecretEnc)
	if err != nil {
		return breach.Result{}, err
	}

	res, cerr := s.oracle.Check(ctx, plaintext)
	if cerr != nil {
		s.log.Warn("breach check failed, storing safe default",
			zap.Stringer("credential", id),
			zap.Error(cerr),
		)
		res = breach.Result{}
	}
	if err := s.creds.SetBreachStatus(ctx, id, res.Breached, res.Count, s.now()); err != nil {
		return breach.Result{}, err
	}
	return res, nil
}

// ScanAll walks the vault strictly sequentially, honoring the remote rate
// limit with a fixed inter-call sleep. Per-item failures are tallied and
// skipped, never raised; only context cancellation aborts the walk.
func (s *BreachServiceImpl) ScanAll(ctx context.Context) (model.ScanResult, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return model.ScanResult{}, err
	}
	creds, err := s.creds.List(ctx, userID, model.Filter{})
	if err != nil {
		return model.ScanResult{}, err
	}

	var res model.ScanResult
	for i := range creds {
		c := &creds[i]
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return res, err
			}
		}

		plaintext, derr := s.cipher.Decrypt(c.SecretEnc)
		if derr != nil {
			res.Failed++
			s.log.Error("unreadable ciphertext, credential skipped in scan",
				zap.Stringer("credential", c.ID),
				zap.Error(derr),
			)
			continue
		}

		check, cerr := s.oracle.Check(ctx, plaintext)
		if cerr != nil {
			res.Failed++
			s.log.Warn("breach check failed, storing safe default",
				zap.Stringer("credential", c.ID),
				zap.Error(cerr),
			)
			check = breach.Result{}
		}

		if err := s.creds.SetBreachStatus(ctx, c.ID, check.Breached, check.Count, s.now()); err != nil {
			res.Failed++
			s.log.Warn("breach status persistence failed",
				zap.Stringer("credential", c.ID),
				zap.Error(err),
			)
			continue
		}

		res.Scanned++
		if check.Breached {
			res.Breached++
			res.Items = append(res.Items, model.BreachedItem{
				ID:    c.ID,
				Name:  c.Name,
				Count: check.Count,
			})
		}
	}
	return res, nil
}

// Stats returns the persisted breach summary for the caller.
func (s *BreachServiceImpl) Stats(ctx context.Context) (model.BreachStats, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return model.BreachStats{}, err
	}

	total, err := s.creds.Count(ctx, userID)
	if err != nil {
		return model.BreachStats{}, err
	}
	breached, err := s.creds.BreachedList(ctx, userID)
	if err != nil {
		return model.BreachStats{}, err
	}
	lastScan, err := s.creds.LastBreachCheck(ctx, userID)
	if err != nil {
		return model.BreachStats{}, err
	}

	stats := model.BreachStats{
		TotalPasswords:    total,
		BreachedPasswords: len(breached),
		LastScan:          lastScan,
		BreachedList:      make([]model.BreachedItem, 0, len(breached)),
	}
	for i := range breached {
		stats.BreachedList = append(stats.BreachedList, model.BreachedItem{
			ID:    breached[i].ID,
			Name:  breached[i].Name,
			Count: breached[i].BreachCount,
		})
	}
	return stats, nil
}
