package database

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoEffect reports a guarded UPDATE that matched no rows, meaning the
// row was not in the state the guard required.
var ErrNoEffect = errors.New("database: guarded update affected no rows")

// Tx is the transaction handle threaded through repository calls.
// Repositories unwrap it to the underlying *sql.Tx; service tests mock it.
type Tx interface {
	Commit() error
	Rollback() error
}

// DB begins transactions. Satisfied by *SQLDB.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

type SQLDB struct{ *sql.DB }

func Open(ctx context.Context, dsn string) (*SQLDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &SQLDB{db}, nil
}

func (d *SQLDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SQLTx{tx}, nil
}

type SQLTx struct{ *sql.Tx }

// Unwrap returns the underlying *sql.Tx for repository queries.
func Unwrap(t Tx) *sql.Tx { return t.(*SQLTx).Tx }
