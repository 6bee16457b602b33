package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/vaultec/vaultcore/internal/errs"
	"github.com/vaultec/vaultcore/internal/model"
	"github.com/vaultec/vaultcore/internal/repository"
)

const historyInsertRe = `INSERT INTO credential_history`

func TestHistoryRepo_Append_AssignsID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	e := model.HistoryEntry{
		CredentialID: uuid.Must(uuid.NewV4()),
		OldSecretEnc: "ct",
		ChangeType:   model.ChangeCreated,
		ChangedBy:    uuid.Must(uuid.NewV4()),
	}
	mock.ExpectExec(historyInsertRe).
		WithArgs(pgxmock.AnyArg(), e.CredentialID, e.OldSecretEnc, e.OldEmail,
			e.OldUsername, e.OldURL, e.ChangeType, e.ChangedBy, e.IPAddress).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Append(context.Background(), &e))
	require.NotEqual(t, uuid.Nil, e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM credential_history WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := r.Get(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHistoryRepo_ListByCredential(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())
	actor := uuid.Must(uuid.NewV4())
	cols := []string{
		"id", "credential_id", "old_secret_enc", "old_email", "old_username",
		"old_url", "change_type", "changed_by", "changed_at", "ip_address",
	}
	rows := pgxmock.NewRows(cols).
		AddRow(uuid.Must(uuid.NewV4()), credID, "ct2", "", "", "", model.ChangeUpdated, actor, time.Now(), "").
		AddRow(uuid.Must(uuid.NewV4()), credID, "ct1", "", "", "", model.ChangeCreated, actor, time.Now().Add(-time.Hour), "")
	mock.ExpectQuery(`FROM credential_history WHERE credential_id=\$1`).
		WithArgs(credID).
		WillReturnRows(rows)

	got, err := r.ListByCredential(context.Background(), credID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.ChangeUpdated, got[0].ChangeType)
	require.Equal(t, "ct2", got[0].OldSecretEnc)
}

func TestHistoryRepo_ApplyRestore_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())
	actor := uuid.Must(uuid.NewV4())
	restored := repository.RestoredFields{
		SecretEnc: "old-ct", Email: "old@example.com", Username: "old", URL: "https://old",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT secret_enc, email, username, url FROM credentials WHERE id=\$1 FOR UPDATE`).
		WithArgs(credID).
		WillReturnRows(pgxmock.NewRows([]string{"secret_enc", "email", "username", "url"}).
			AddRow("cur-ct", "cur@example.com", "cur", "https://cur"))
	mock.ExpectExec(historyInsertRe).
		WithArgs(pgxmock.AnyArg(), credID, "cur-ct", "cur@example.com", "cur", "https://cur",
			model.ChangeUpdated, actor, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// full column list pinned: a restore must not touch last_secret_change
	mock.ExpectExec(`UPDATE credentials\s+SET secret_enc=\$2, email=\$3, username=\$4, url=\$5, updated_at=now\(\)\s+WHERE id=\$1`).
		WithArgs(credID, restored.SecretEnc, restored.Email, restored.Username, restored.URL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(historyInsertRe).
		WithArgs(pgxmock.AnyArg(), credID, restored.SecretEnc, restored.Email, restored.Username, restored.URL,
			model.ChangeRestored, actor, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.ApplyRestore(context.Background(), credID, restored, actor))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_ApplyRestore_MissingCredential(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(credID).
		WillReturnRows(pgxmock.NewRows([]string{"secret_enc", "email", "username", "url"}))
	mock.ExpectRollback()

	err := r.ApplyRestore(context.Background(), credID, repository.RestoredFields{}, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHistoryRepo_ApplyRestore_RollsBackOnWriteFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())
	actor := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(credID).
		WillReturnRows(pgxmock.NewRows([]string{"secret_enc", "email", "username", "url"}).
			AddRow("cur-ct", "", "", ""))
	mock.ExpectExec(historyInsertRe).
		WithArgs(pgxmock.AnyArg(), credID, "cur-ct", "", "", "", model.ChangeUpdated, actor, "").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := r.ApplyRestore(context.Background(), credID, repository.RestoredFields{SecretEnc: "x"}, actor)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Prune(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM credential_history`).
		WithArgs(credID, 10).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	deleted, err := r.Prune(context.Background(), credID, 10)
	require.NoError(t, err)
	require.Equal(t, 5, deleted)

	// already within retention: nothing to delete
	mock.ExpectExec(`DELETE FROM credential_history`).
		WithArgs(credID, 10).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	deleted, err = r.Prune(context.Background(), credID, 10)
	require.NoError(t, err)
	require.Equal(t, 0, deleted)
}

func TestHistoryRepo_Prune_NegativeKeep(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	credID := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`DELETE FROM credential_history`).
		WithArgs(credID, 0).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := r.Prune(context.Background(), credID, -4)
	require.NoError(t, err)
	require.Equal(t, 3, deleted)
}
