package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
)

// HistoryRepo implements HistoryRepository using PostgreSQL.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

const historyInsert = `
INSERT INTO credential_history
  (id, credential_id, old_secret_enc, old_email, old_username, old_url, change_type, changed_by, ip_address)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

// Append records one immutable snapshot. Assigns the entry ID when unset.
func (r *HistoryRepo) Append(ctx context.Context, e *model.HistoryEntry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		e.ID = id
	}
	_, err := r.db.Pool.Exec(ctx, historyInsert,
		e.ID, e.CredentialID, e.OldSecretEnc, e.OldEmail, e.OldUsername,
		e.OldURL, e.ChangeType, e.ChangedBy, e.IPAddress)
	return err
}

// Get returns a single entry by ID.
func (r *HistoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.HistoryEntry, error) {
	const q = `
SELECT id, credential_id, old_secret_enc, old_email, old_username, old_url,
       change_type, changed_by, changed_at, ip_address
FROM credential_history WHERE id=$1`
	var e model.HistoryEntry
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(
		&e.ID, &e.CredentialID, &e.OldSecretEnc, &e.OldEmail, &e.OldUsername,
		&e.OldURL, &e.ChangeType, &e.ChangedBy, &e.ChangedAt, &e.IPAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListByCredential returns entries newest-first.
func (r *HistoryRepo) ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]model.HistoryEntry, error) {
	const q = `
SELECT id, credential_id, old_secret_enc, old_email, old_username, old_url,
       change_type, changed_by, changed_at, ip_address
FROM credential_history WHERE credential_id=$1
ORDER BY changed_at DESC, id`
	rows, err := r.db.Pool.Query(ctx, q, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.CredentialID, &e.OldSecretEnc, &e.OldEmail, &e.OldUsername,
			&e.OldURL, &e.ChangeType, &e.ChangedBy, &e.ChangedAt, &e.IPAddress); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ApplyRestore performs the restore three-step atomically: snapshot current
// state (UPDATED), overwrite the credential, snapshot applied state (RESTORED).
// The row lock keeps concurrent readers from observing a partial restore.
func (r *HistoryRepo) ApplyRestore(
	ctx context.Context, credentialID uuid.UUID, restored repository.RestoredFields, actor uuid.UUID,
) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT secret_enc, email, username, url FROM credentials WHERE id=$1 FOR UPDATE`
	var cur repository.RestoredFields
	if err = tx.QueryRow(ctx, sel, credentialID).Scan(&cur.SecretEnc, &cur.Email, &cur.Username, &cur.URL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}

	preID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, historyInsert,
		preID, credentialID, cur.SecretEnc, cur.Email, cur.Username, cur.URL,
		model.ChangeUpdated, actor, ""); err != nil {
		return fmt.Errorf("snapshot current state: %w", err)
	}

	// last_secret_change stays put: a restore brings back an old secret,
	// it does not make the password any younger.
	const upd = `
UPDATE credentials
SET secret_enc=$2, email=$3, username=$4, url=$5, updated_at=now()
WHERE id=$1`
	if _, err = tx.Exec(ctx, upd,
		credentialID, restored.SecretEnc, restored.Email, restored.Username, restored.URL); err != nil {
		return fmt.Errorf("apply restored state: %w", err)
	}

	postID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, historyInsert,
		postID, credentialID, restored.SecretEnc, restored.Email, restored.Username, restored.URL,
		model.ChangeRestored, actor, ""); err != nil {
		return fmt.Errorf("snapshot restored state: %w", err)
	}
	return nil
}

// Prune keeps the keepLastN newest entries and deletes the rest.
func (r *HistoryRepo) Prune(ctx context.Context, credentialID uuid.UUID, keepLastN int) (int, error) {
	if keepLastN < 0 {
		keepLastN = 0
	}
	const q = `
DELETE FROM credential_history
WHERE credential_id=$1 AND id NOT IN (
  SELECT id FROM credential_history
  WHERE credential_id=$1
  ORDER BY changed_at DESC, id
  LIMIT $2)`
	tag, err := r.db.Pool.Exec(ctx, q, credentialID, keepLastN)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
