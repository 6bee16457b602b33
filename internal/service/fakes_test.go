package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultec/vaultcore/internal/breach"
	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
	"github.com/vaultec/vaultcore/internal/secrets"
)

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	c, err := secrets.NewCipher(bytes.Repeat([]byte{0x24}, secrets.KeyLen))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func encryptFor(t *testing.T, c *secrets.Cipher, plaintext string) string {
	t.Helper()
	enc, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return enc
}

// fakeResolver yields a fixed principal or an error.
type fakeResolver struct {
	id  uuid.UUID
	err error
}

func (f fakeResolver) Resolve(context.Context) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.id, nil
}

type scoreWrite struct {
	id          uuid.UUID
	score       int
	needsUpdate bool
}

type breachWrite struct {
	id       uuid.UUID
	breached bool
	count    int
}

// fakeCredRepo keeps credentials in a slice, records writes, and lets tests
// inject failures per method or per credential ID. The mutex covers the
// write recorders: score writes arrive from concurrent goroutines.
type fakeCredRepo struct {
	mu    sync.Mutex
	creds []model.Credential

	listErr   error
	getErr    error
	createErr error
	updateErr error

	scoreWrites    []scoreWrite
	scoreFailFor   map[uuid.UUID]error
	breachWrites   []breachWrite
	breachFailFor  map[uuid.UUID]error
	lastBreachScan *time.Time
}

var _ repository.CredentialRepository = (*fakeCredRepo)(nil)

func (f *fakeCredRepo) Create(_ context.Context, c *model.Credential) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.creds = append(f.creds, *c)
	return nil
}

func (f *fakeCredRepo) Update(_ context.Context, c *model.Credential) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.creds {
		if f.creds[i].ID == c.ID && f.creds[i].UserID == c.UserID {
			f.creds[i] = *c
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeCredRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	for i := range f.creds {
		if f.creds[i].ID == id && f.creds[i].UserID == userID {
			f.creds = append(f.creds[:i], f.creds[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeCredRepo) Get(_ context.Context, userID, id uuid.UUID) (*model.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.creds {
		if f.creds[i].ID == id && f.creds[i].UserID == userID {
			c := f.creds[i]
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeCredRepo) List(_ context.Context, userID uuid.UUID, _ model.Filter) ([]model.Credential, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Credential
	for i := range f.creds {
		if f.creds[i].UserID == userID {
			out = append(out, f.creds[i])
		}
	}
	return out, nil
}

func (f *fakeCredRepo) Count(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for i := range f.creds {
		if f.creds[i].UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCredRepo) SetFavorite(_ context.Context, userID, id uuid.UUID, fav bool) error {
	for i := range f.creds {
		if f.creds[i].ID == id && f.creds[i].UserID == userID {
			f.creds[i].Favorite = fav
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeCredRepo) SetSecurityScore(_ context.Context, id uuid.UUID, score int, needsUpdate bool) error {
	if err := f.scoreFailFor[id]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreWrites = append(f.scoreWrites, scoreWrite{id: id, score: score, needsUpdate: needsUpdate})
	return nil
}

func (f *fakeCredRepo) SetBreachStatus(_ context.Context, id uuid.UUID, breached bool, count int, checkedAt time.Time) error {
	if err := f.breachFailFor[id]; err != nil {
		return err
	}
	f.breachWrites = append(f.breachWrites, breachWrite{id: id, breached: breached, count: count})
	for i := range f.creds {
		if f.creds[i].ID == id {
			f.creds[i].Breached = &breached
			f.creds[i].BreachCount = count
			t := checkedAt
			f.creds[i].LastBreachCheck = &t
		}
	}
	f.lastBreachScan = &checkedAt
	return nil
}

func (f *fakeCredRepo) BreachedList(_ context.Context, userID uuid.UUID) ([]model.Credential, error) {
	var out []model.Credential
	for i := range f.creds {
		if f.creds[i].UserID == userID && f.creds[i].Breached != nil && *f.creds[i].Breached {
			out = append(out, f.creds[i])
		}
	}
	return out, nil
}

func (f *fakeCredRepo) LastBreachCheck(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return f.lastBreachScan, nil
}

// fakeHistoryRepo records appends in order and supports scripted failures.
type fakeHistoryRepo struct {
	entries    []model.HistoryEntry
	appendErr  error
	pruneErr   error
	pruneCalls []int
	restoreErr error
	restored   []repository.RestoredFields
}

var _ repository.HistoryRepository = (*fakeHistoryRepo)(nil)

func (f *fakeHistoryRepo) Append(_ context.Context, e *model.HistoryEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV4())
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistoryRepo) Get(_ context.Context, id uuid.UUID) (*model.HistoryEntry, error) {
	for i := range f.entries {
		if f.entries[i].ID == id {
			e := f.entries[i]
			return &e, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeHistoryRepo) ListByCredential(_ context.Context, credentialID uuid.UUID) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	for i := range f.entries {
		if f.entries[i].CredentialID == credentialID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) ApplyRestore(_ context.Context, credentialID uuid.UUID, restored repository.RestoredFields, actor uuid.UUID) error {
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restored = append(f.restored, restored)
	f.entries = append(f.entries,
		model.HistoryEntry{ID: uuid.Must(uuid.NewV4()), CredentialID: credentialID, ChangeType: model.ChangeUpdated, ChangedBy: actor},
		model.HistoryEntry{ID: uuid.Must(uuid.NewV4()), CredentialID: credentialID, ChangeType: model.ChangeRestored, ChangedBy: actor, OldSecretEnc: restored.SecretEnc},
	)
	return nil
}

func (f *fakeHistoryRepo) Prune(_ context.Context, _ uuid.UUID, keepLastN int) (int, error) {
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	f.pruneCalls = append(f.pruneCalls, keepLastN)
	return 0, nil
}

// fakeAuditRepo records appended snapshots.
type fakeAuditRepo struct {
	snapshots []model.AuditSnapshot
	appendErr error
}

var _ repository.AuditRepository = (*fakeAuditRepo)(nil)

func (f *fakeAuditRepo) Append(_ context.Context, s *model.AuditSnapshot) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.snapshots = append(f.snapshots, *s)
	return nil
}

func (f *fakeAuditRepo) Latest(_ context.Context, userID uuid.UUID) (*model.AuditSnapshot, error) {
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		if f.snapshots[i].UserID == userID {
			s := f.snapshots[i]
			return &s, nil
		}
	}
	return nil, errs.ErrNotFound
}

// fakeChecker scripts breach results per plaintext.
type fakeChecker struct {
	results map[string]breach.Result
	errFor  map[string]error
	calls   []string
}

func (f *fakeChecker) Check(_ context.Context, plaintext string) (breach.Result, error) {
	f.calls = append(f.calls, plaintext)
	if err := f.errFor[plaintext]; err != nil {
		return breach.Result{}, err
	}
	return f.results[plaintext], nil
}
