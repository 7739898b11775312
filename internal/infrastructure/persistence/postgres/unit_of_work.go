package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
)

// UnitOfWork implements store.UnitOfWork on a pgx transaction.
type UnitOfWork struct {
	conn *Connection
	opts TxOptions
}

// NewUnitOfWork creates a UnitOfWork running READ COMMITTED transactions.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn, opts: DefaultTxOptions()}
}

// Do runs fn in one transaction with repositories bound to it.
func (u *UnitOfWork) Do(ctx context.Context, fn store.TxFunc) error {
	err := u.conn.WithTx(ctx, u.opts, func(tx pgx.Tx) error {
		return fn(ctx, store.Repositories{
			Tasks:  &TaskProgressRepository{q: tx},
			Quests: &QuestProgressRepository{q: tx},
			Ledger: &LedgerRepository{q: tx},
		})
	})
	return storageError("Do", err)
}

var _ store.UnitOfWork = (*UnitOfWork)(nil)
