package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/identity"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
	"github.com/vaultec/vaultcore/internal/secrets"
	"github.com/vaultec/vaultcore/internal/strength"
)

// Weak threshold and penalty caps of the overall score formula.
const (
	weakScoreThreshold     = 60
	criticalScoreThreshold = 30

	weakWeight = 0.4
	weakCap    = 40.0
	dupWeight  = 0.3
	dupCap     = 30.0
	oldWeight  = 0.3
	oldCap     = 30.0
)

// AuditService analyzes a user's whole vault and persists the outcome.
type AuditService interface {
	// Analyze runs the full audit: strength, duplicates, staleness, issues,
	// score persistence and one appended snapshot.
	Analyze(ctx context.Context) (model.AuditResult, error)
	// Latest returns the most recent persisted snapshot, or ErrNotFound.
	Latest(ctx context.Context) (*model.AuditSnapshot, error)
}

type AuditServiceImpl struct {
	resolver   identity.Resolver
	creds      repository.CredentialRepository
	audits     repository.AuditRepository
	cipher     *secrets.Cipher
	staleAfter time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewAuditService constructs AuditService with required dependencies.
func NewAuditService(
	resolver identity.Resolver,
	creds repository.CredentialRepository,
	audits repository.AuditRepository,
	cipher *secrets.Cipher,
	staleAfter time.Duration,
	log *zap.Logger,
) *AuditServiceImpl {
	if staleAfter <= 0 {
		staleAfter = 90 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditServiceImpl{
		resolver:   resolver,
		creds:      creds,
		audits:     audits,
		cipher:     cipher,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

// analyzed is one credential with its derived audit state. The plaintext
// lives only inside Analyze; it never leaves the call.
type analyzed struct {
	id        uuid.UUID
	name      string
	plaintext string
	score     int
	weak      bool
	old       bool
	ageDays   int
}

// Analyze implements the ordered audit pipeline. Per-item failures (an
// unreadable ciphertext, one failed score write) are logged and skipped;
// only whole-run failures surface as ErrAudit.
func (s *AuditServiceImpl) Analyze(ctx context.Context) (model.AuditResult, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return model.AuditResult{}, err
	}

	creds, err := s.creds.List(ctx, userID, model.Filter{})
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("%w: list credentials: %v", errs.ErrAudit, err)
	}

	// Empty vault is a perfect vault: no side effects at all.
	if len(creds) == 0 {
		return model.AuditResult{OverallScore: 100, Issues: []model.SecurityIssue{}}, nil
	}

	now := s.now()
	items := make([]analyzed, 0, len(creds))
	for i := range creds {
		c := &creds[i]
		plaintext, derr := s.cipher.Decrypt(c.SecretEnc)
		if derr != nil {
			// Data-integrity violation on one record: surface in logs,
			// keep the rest of the run alive.
			s.log.Error("unreadable ciphertext, credential excluded from audit",
				zap.Stringer("credential", c.ID),
				zap.Error(derr),
			)
			continue
		}
		age := now.Sub(c.LastSecretChange)
		score := strength.PersistScore(strength.Calculate(plaintext).Class)
		items = append(items, analyzed{
			id:        c.ID,
			name:      c.Name,
			plaintext: plaintext,
			score:     score,
			weak:      score < weakScoreThreshold,
			old:       age > s.staleAfter,
			ageDays:   int(age.Hours() / 24),
		})
	}
	if len(items) == 0 {
		return model.AuditResult{}, fmt.Errorf("%w: no readable credentials", errs.ErrAudit)
	}

	// Duplicate groups keyed by exact plaintext, first-seen order preserved.
	groups := make(map[string][]int, len(items))
	var groupOrder []string
	for i := range items {
		key := items[i].plaintext
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], i)
	}
	duplicate := make([]bool, len(items))
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			duplicate[i] = true
		}
	}

	total := len(items)
	weak, old, dups := 0, 0, 0
	for i := range items {
		if items[i].weak {
			weak++
		}
		if items[i].old {
			old++
		}
		if duplicate[i] {
			dups++
		}
	}
	strong := total - weak

	issues := buildIssues(items, groups, groupOrder)
	overall := overallScore(total, weak, dups, old)

	// Per-credential score writes are independent rows: fan out, log failures,
	// and only append the snapshot once every attempt has finished.
	var wg sync.WaitGroup
	for i := range items {
		it := items[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			needsUpdate := it.weak || it.old
			if err := s.creds.SetSecurityScore(ctx, it.id, it.score, needsUpdate); err != nil {
				s.log.Warn("score persistence failed",
					zap.Stringer("credential", it.id),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()

	snapshot := &model.AuditSnapshot{
		UserID:          userID,
		OverallScore:    overall,
		TotalPasswords:  total,
		WeakPasswords:   weak,
		Duplicates:      dups,
		OldPasswords:    old,
		StrongPasswords: strong,
	}
	if err := s.audits.Append(ctx, snapshot); err != nil {
		return model.AuditResult{}, fmt.Errorf("%w: append snapshot: %v", errs.ErrAudit, err)
	}

	return model.AuditResult{
		OverallScore:    overall,
		TotalPasswords:  total,
		WeakPasswords:   weak,
		Duplicates:      dups,
		OldPasswords:    old,
		StrongPasswords: strong,
		Issues:          issues,
	}, nil
}

// buildIssues produces the finding list: one weak issue per weak credential,
// one duplicate issue per group (attributed to its first-seen member), one
// old issue per stale credential. Stable sort by severity rank keeps insertion
// order within equal severities.
func buildIssues(items []analyzed, groups map[string][]int, groupOrder []string) []model.SecurityIssue {
	issues := make([]model.SecurityIssue, 0, len(items))

	for i := range items {
		if !items[i].weak {
			continue
		}
		sev := model.SeverityWarning
		if items[i].score < criticalScoreThreshold {
			sev = model.SeverityCritical
		}
		issues = append(issues, model.SecurityIssue{
			CredentialID: items[i].id,
			Type:         model.IssueWeak,
			Severity:     sev,
			Name:         items[i].name,
			Message:      fmt.Sprintf("Weak password (score: %d/100)", items[i].score),
		})
	}

	for _, key := range groupOrder {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		first := items[members[0]]
		issues = append(issues, model.SecurityIssue{
			CredentialID: first.id,
			Type:         model.IssueDuplicate,
			Severity:     model.SeverityWarning,
			Name:         first.name,
			Message:      fmt.Sprintf("Password used in %d accounts", len(members)),
		})
	}

	for i := range items {
		if !items[i].old {
			continue
		}
		issues = append(issues, model.SecurityIssue{
			CredentialID: items[i].id,
			Type:         model.IssueOld,
			Severity:     model.SeverityInfo,
			Name:         items[i].name,
			Message:      fmt.Sprintf("Not changed in %d days", items[i].ageDays),
		})
	}

	sort.SliceStable(issues, func(a, b int) bool {
		return issues[a].Severity.Rank() < issues[b].Severity.Rank()
	})
	return issues
}

// overallScore applies three independent capped penalties to a base of 100.
func overallScore(total, weak, dups, old int) int {
	if total == 0 {
		return 100
	}
	score := 100.0
	score -= math.Min(float64(weak)/float64(total)*100*weakWeight, weakCap)
	score -= math.Min(float64(dups)/float64(total)*100*dupWeight, dupCap)
	score -= math.Min(float64(old)/float64(total)*100*oldWeight, oldCap)
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}

// Latest returns the most recent snapshot for the caller.
func (s *AuditServiceImpl) Latest(ctx context.Context) (*model.AuditSnapshot, error) {
	userID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.audits.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: latest snapshot: %v", errs.ErrOperationFailed, err)
	}
	return snap, nil
}
