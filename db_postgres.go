package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/example/apicatalog/internal/catalog"
)

type PostgresDB struct {
	*sqlRepo
	db  *sql.DB
	dsn string
}

func pqCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

var postgresDialect = dialect{
	bind:         rebindDollar,
	isUnique:     func(err error) bool { return pqCode(err, "23505") },
	isForeignKey: func(err error) bool { return pqCode(err, "23503") },
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return newPostgresDB(d, dsn)
}

func newPostgresDB(d *sql.DB, dsn string) (*PostgresDB, error) {
	p := &PostgresDB{sqlRepo: &sqlRepo{q: d, d: postgresDialect}, db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func (p *PostgresDB) WithinTx(ctx context.Context, fn func(catalog.Repositories) error) error {
	return withinTx(ctx, p.db, postgresDialect, fn)
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
