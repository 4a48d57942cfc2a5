package repository

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

const (
	txKey    contextKey = "gorm_tx"
	hooksKey contextKey = "after_commit"
)

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

type commitHooks struct {
	fns []func(ctx context.Context)
}

// RunInTx runs fn in a transaction. A call made while a transaction is already
// in ctx joins it. Hooks registered with AfterCommit run once the outermost
// transaction commits and are dropped on rollback.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	hooks := &commitHooks{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		txCtx = context.WithValue(txCtx, hooksKey, hooks)
		return fn(txCtx)
	})
	if err != nil {
		return err
	}
	detached := Detach(ctx)
	for _, h := range hooks.fns {
		h(detached)
	}
	return nil
}

// AfterCommit defers fn until the surrounding transaction commits. Outside a
// transaction fn runs immediately. fn receives a context without the transaction.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if hooks, ok := ctx.Value(hooksKey).(*commitHooks); ok && hooks != nil {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(Detach(ctx))
}

// Detach returns ctx with any transaction and pending hooks masked out.
func Detach(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, txKey, (*gorm.DB)(nil))
	return context.WithValue(ctx, hooksKey, (*commitHooks)(nil))
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
