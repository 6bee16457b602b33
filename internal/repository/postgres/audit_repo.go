package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit snapshot repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append records one aggregate snapshot. Assigns the ID when unset.
func (r *AuditRepo) Append(ctx context.Context, s *model.AuditSnapshot) error {
	if s.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		s.ID = id
	}
	const q = `
INSERT INTO security_audits
  (id, user_id, overall_score, total_passwords, weak_passwords, duplicates, old_passwords, strong_passwords)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Pool.Exec(ctx, q,
		s.ID, s.UserID, s.OverallScore, s.TotalPasswords, s.WeakPasswords,
		s.Duplicates, s.OldPasswords, s.StrongPasswords)
	return err
}

// Latest returns the most recent snapshot for a user.
func (r *AuditRepo) Latest(ctx context.Context, userID uuid.UUID) (*model.AuditSnapshot, error) {
	const q = `
SELECT id, user_id, overall_score, total_passwords, weak_passwords, duplicates,
       old_passwords, strong_passwords, created_at
FROM security_audits WHERE user_id=$1
ORDER BY created_at DESC, id LIMIT 1`
	var s model.AuditSnapshot
	err := r.db.Pool.QueryRow(ctx, q, userID).Scan(
		&s.ID, &s.UserID, &s.OverallScore, &s.TotalPasswords, &s.WeakPasswords,
		&s.Duplicates, &s.OldPasswords, &s.StrongPasswords, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
