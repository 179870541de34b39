package rdbms

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
)

// PgConnection implements interface Connector over a pgx connection pool.
type PgConnection struct {
	log  logger.Logger
	pool *pgxpool.Pool
}

// NewPgConnection opens a pgx pool for the supplied DSN and pings it so bad
// credentials fail fast rather than on first use.
func NewPgConnection(ctx context.Context, log logger.Logger, dsn string) (Connector, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error creating postgres connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "error connecting to postgres")
	}
	return &PgConnection{log: log, pool: pool}, nil
}

func (c *PgConnection) Begin(ctx context.Context) (Transacter, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTransaction{tx: tx}, nil
}

func (c *PgConnection) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (c *PgConnection) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return c.pool.QueryRow(ctx, query, args...)
}

func (c *PgConnection) Close() {
	c.pool.Close()
}

func (c *PgConnection) GetType() string {
	return constants.ConnectionTypePostgres
}

func (c *PgConnection) GetDmlGenerator() DmlGenerator {
	return &DmlGeneratorTxtBatch{}
}

type pgTransaction struct {
	tx pgx.Tx
}

func (t *pgTransaction) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (t *pgTransaction) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTransaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
