package rdbms

import (
	"context"

	om "github.com/cevaris/ordered_map"
	"github.com/gridmix/gridmix/logger"
)

// Connector abstracts all database access so components and actions can be
// tested against a mock without a live Postgres.
type Connector interface {
	Begin(ctx context.Context) (Transacter, error)
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Close()
	GetType() string
	GetDmlGenerator() DmlGenerator
}

type Transacter interface {
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Result interface {
	RowsAffected() int64
}

type Row interface {
	Scan(dest ...interface{}) error
}

type DmlGenerator interface {
	NewUpsertGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtGenerator
}

type SqlStmtGenerator interface {
	GetStatement() string
}

// SqlStmtTxtBatcher combines DML statements that affect individual records into
// one multi-row statement, aiming to reduce network round trips.
type SqlStmtTxtBatcher interface {
	SqlStmtGenerator
	InitBatch(batchSize int)                             // reset variables and preallocate slices for the given batch size.
	AddValuesToBatch(values []interface{}) (bool, error) // add one row of values to the pending statement.
	GetValues() []interface{}                            // get all values added to the batch so they can be supplied as args to exec the SQL returned by GetStatement().
}

type SqlStatementGeneratorConfig struct {
	Log             logger.Logger
	OutputSchema    string
	SchemaSeparator string
	OutputTable     string
	TargetKeyCols   *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	TargetOtherCols *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	UpdateExtra     string         // optional extra assignment appended to the ON CONFLICT update set list.
}

func FixSqlStatementGeneratorConfig(cfg *SqlStatementGeneratorConfig) {
	if cfg.OutputTable == "" {
		cfg.Log.Fatal("Error, missing output table name.")
	}
	if cfg.OutputSchema == "" {
		cfg.SchemaSeparator = ""
		cfg.Log.Debug("No output schema supplied; setting a blank separator.")
	} else {
		cfg.SchemaSeparator = "."
	}
}
