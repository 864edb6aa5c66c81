package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	DSN string
}

func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, conf.DSN)
}

// TxManager — обёртка над пулом журнала. База одна, реплик нет.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) Close() {
	m.pool.Close()
}

// Conn — прямой доступ без транзакции, для одиночных чтений.
func (m *TxManager) Conn() Querier {
	return m.pool
}

// InTx выполняет fn в транзакции ReadCommitted. Паника внутри fn
// откатывает транзакцию и пробрасывается дальше.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	if err = fn(ctx, tx); err != nil {
		return fmt.Errorf("tx fn: %w", err)
	}
	return nil
}
