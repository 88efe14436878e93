package txn_test

import (
	"context"
	"testing"

	"github.com/fluxweave/fluxweave/engine/store/txn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func Test_Txn_SavepointReleaseCommit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_step").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_step").WillReturnResult(pgxmock.NewResult("RELEASE", 0))
	mock.ExpectCommit()

	pgxTx, err := mock.Begin(ctx)
	require.NoError(t, err)
	tx := txn.Wrap(pgxTx)

	sp, err := tx.Savepoint(ctx, "step")
	require.NoError(t, err)
	require.NoError(t, sp.Release(ctx))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Txn_SavepointRollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_step").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_step").WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectRollback()

	pgxTx, err := mock.Begin(ctx)
	require.NoError(t, err)
	tx := txn.Wrap(pgxTx)

	sp, err := tx.Savepoint(ctx, "step")
	require.NoError(t, err)
	require.NoError(t, sp.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Txn_SavepointNameSanitizesInput(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_dropusers").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectRollback()

	pgxTx, err := mock.Begin(ctx)
	require.NoError(t, err)
	tx := txn.Wrap(pgxTx)

	_, err = tx.Savepoint(ctx, "drop users; --")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}
