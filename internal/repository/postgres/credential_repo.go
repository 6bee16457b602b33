package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/model"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

const credentialColumns = `
id, user_id, name, url, username, email, notes, logo_url, favorite,
secret_enc, security_score, needs_update, breached, breach_count,
last_breach_check, last_secret_change, created_at, updated_at`

func scanCredential(row pgx.Row, c *model.Credential) error {
	return row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.URL, &c.Username, &c.Email, &c.Notes,
		&c.LogoURL, &c.Favorite, &c.SecretEnc, &c.SecurityScore, &c.NeedsUpdate,
		&c.Breached, &c.BreachCount, &c.LastBreachCheck, &c.LastSecretChange,
		&c.CreatedAt, &c.UpdatedAt,
	)
}

// Create inserts a new credential row.
func (r *CredentialRepo) Create(ctx context.Context, c *model.Credential) error {
	const q = `
INSERT INTO credentials
  (id, user_id, name, url, username, email, notes, logo_url, favorite, secret_enc, last_secret_change)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.Pool.Exec(ctx, q,
		c.ID, c.UserID, c.Name, c.URL, c.Username, c.Email, c.Notes,
		c.LogoURL, c.Favorite, c.SecretEnc, c.LastSecretChange)
	return err
}

// Update overwrites the mutable fields of a credential owned by c.UserID.
func (r *CredentialRepo) Update(ctx context.Context, c *model.Credential) error {
	const q = `
UPDATE credentials SET
  name=$3, url=$4, username=$5, email=$6, notes=$7, logo_url=$8, favorite=$9,
  secret_enc=$10, last_secret_change=$11, updated_at=now()
WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q,
		c.ID, c.UserID, c.Name, c.URL, c.Username, c.Email, c.Notes,
		c.LogoURL, c.Favorite, c.SecretEnc, c.LastSecretChange)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a credential; history rows cascade via FK.
func (r *CredentialRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const q = `DELETE FROM credentials WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Get returns one credential owned by userID.
func (r *CredentialRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Credential, error) {
	const q = `SELECT` + credentialColumns + `
FROM credentials WHERE id=$1 AND user_id=$2`
	var c model.Credential
	if err := scanCredential(r.db.Pool.QueryRow(ctx, q, id, userID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns the user's credentials, newest-updated first.
// Search matches name, email or username, case-insensitively.
func (r *CredentialRepo) List(ctx context.Context, userID uuid.UUID, f model.Filter) ([]model.Credential, error) {
	const q = `SELECT` + credentialColumns + `
FROM credentials
WHERE user_id=$1
  AND ($2 = '' OR name ILIKE '%'||$2||'%' OR email ILIKE '%'||$2||'%' OR username ILIKE '%'||$2||'%')
  AND (NOT $3 OR favorite)
ORDER BY updated_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID, f.Search, f.FavoriteOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := scanCredential(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of credentials the user owns.
func (r *CredentialRepo) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM credentials WHERE user_id=$1`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SetFavorite flips the favorite flag.
func (r *CredentialRepo) SetFavorite(ctx context.Context, userID, id uuid.UUID, favorite bool) error {
	const q = `UPDATE credentials SET favorite=$3, updated_at=now() WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID, favorite)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetSecurityScore persists an audit score and needs-update flag for one row.
func (r *CredentialRepo) SetSecurityScore(ctx context.Context, id uuid.UUID, score int, needsUpdate bool) error {
	const q = `UPDATE credentials SET security_score=$2, needs_update=$3 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, score, needsUpdate)
	return err
}

// SetBreachStatus persists the outcome of a breach check for one row.
func (r *CredentialRepo) SetBreachStatus(ctx context.Context, id uuid.UUID, breached bool, count int, checkedAt time.Time) error {
	const q = `UPDATE credentials SET breached=$2, breach_count=$3, last_breach_check=$4 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, breached, count, checkedAt)
	return err
}

// BreachedList returns breached credentials ordered by breach count descending.
func (r *CredentialRepo) BreachedList(ctx context.Context, userID uuid.UUID) ([]model.Credential, error) {
	const q = `SELECT` + credentialColumns + `
FROM credentials WHERE user_id=$1 AND breached ORDER BY breach_count DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := scanCredential(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LastBreachCheck returns the newest breach-check time for a user, nil if none.
func (r *CredentialRepo) LastBreachCheck(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	const q = `SELECT MAX(last_breach_check) FROM credentials WHERE user_id=$1`
	var ts *time.Time
	if err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&ts); err != nil {
		return nil, err
	}
	return ts, nil
}
