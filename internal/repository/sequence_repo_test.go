package repository_test

import (
	"context"
	"errors"
	"testing"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceNextIsGapFree(t *testing.T) {
	db := openDB(t)
	tm := repository.NewTransactionManager(db)
	seq := repository.NewSequenceRepository(db)
	ctx := context.Background()

	next := func() int64 {
		var n int64
		require.NoError(t, tm.RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			n, err = seq.Next(txCtx, model.SequenceInvoice)
			return err
		}))
		return n
	}
	assert.EqualValues(t, 1, next())
	assert.EqualValues(t, 2, next())

	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := seq.Next(txCtx, model.SequenceInvoice)
		require.NoError(t, err)
		return errors.New("document rejected")
	})
	require.Error(t, err)
	assert.EqualValues(t, 3, next(), "a rolled back number is reused")

	var other int64
	require.NoError(t, tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		other, err = seq.Next(txCtx, model.SequenceReceipt)
		return err
	}))
	assert.EqualValues(t, 1, other)
}

func TestSequenceNextCreatesUnknownCounter(t *testing.T) {
	db := openDB(t)
	seq := repository.NewSequenceRepository(db)

	n, err := seq.Next(context.Background(), "CREDIT_NOTE")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = seq.Next(context.Background(), "CREDIT_NOTE")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
