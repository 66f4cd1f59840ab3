// internal/repository/postgres/db.go
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the part of *pgxpool.Pool the repositories use.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type DB struct {
	pool Conn
}

func NewDB(pool Conn) *DB {
	return &DB{pool: pool}
}

// BeginTx starts a read-committed transaction.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

func (db *DB) Pool() Conn {
	return db.pool
}

// Ping checks connectivity for health reporting.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
