package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"backoffice/internal/database"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRunInTxCommitRunsHooks(t *testing.T) {
	db := openDB(t)
	tm := repository.NewTransactionManager(db)
	audit := repository.NewAuditRepository(db)

	var ran []string
	err := tm.RunInTx(context.Background(), func(txCtx context.Context) error {
		repository.AfterCommit(txCtx, func(ctx context.Context) {
			// the hook sees committed data through a context without the transaction
			_, total, err := audit.List(ctx, 1, 10, "")
			assert.NoError(t, err)
			assert.EqualValues(t, 1, total)
			ran = append(ran, "outer")
		})
		return audit.Log(txCtx, &model.AuditLog{Actor: "tester", Action: "TEST", EntityID: "1"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, ran)
}

func TestRunInTxRollbackDropsHooks(t *testing.T) {
	db := openDB(t)
	tm := repository.NewTransactionManager(db)
	audit := repository.NewAuditRepository(db)
	boom := errors.New("boom")

	ran := false
	err := tm.RunInTx(context.Background(), func(txCtx context.Context) error {
		repository.AfterCommit(txCtx, func(context.Context) { ran = true })
		require.NoError(t, audit.Log(txCtx, &model.AuditLog{Actor: "tester", Action: "TEST", EntityID: "1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)

	_, total, err := audit.List(context.Background(), 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRunInTxJoinsOuterTransaction(t *testing.T) {
	db := openDB(t)
	tm := repository.NewTransactionManager(db)
	audit := repository.NewAuditRepository(db)

	var order []string
	err := tm.RunInTx(context.Background(), func(txCtx context.Context) error {
		inner := tm.RunInTx(txCtx, func(innerCtx context.Context) error {
			repository.AfterCommit(innerCtx, func(context.Context) { order = append(order, "inner") })
			return audit.Log(innerCtx, &model.AuditLog{Actor: "tester", Action: "INNER", EntityID: "1"})
		})
		require.NoError(t, inner)
		assert.Empty(t, order, "hooks wait for the outermost commit")
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, order)

	_, total, err := audit.List(context.Background(), 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, total, "inner work rolls back with the outer transaction")
}

func TestAfterCommitOutsideTransactionRunsImmediately(t *testing.T) {
	ran := false
	repository.AfterCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
}
