package rdbms

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
)

// MockConnectionWithMockTx implements interface Connector for tests. Every
// executed statement is recorded and optionally emitted on OutputChan. Setting
// FailOnExecNumber forces the Nth Exec (1-based, across the connection and its
// transactions) to fail so callers can test rollback behaviour.
type MockConnectionWithMockTx struct {
	Log              logger.Logger
	OutputChan       chan string // receives each executed SQL statement when non-nil.
	FailOnExecNumber int
	QueryRowValues   []interface{} // values scanned back by the next QueryRow().Scan().
	QueryRowErr      error

	mu        sync.Mutex
	execSqls  []string
	execArgs  [][]interface{}
	execCount int
	Begins    int
	Commits   int
	Rollbacks int
	Closed    bool
}

// NewMockConnectionWithMockTx returns a mock Connector and the channel that
// executed SQL statements are emitted on.
func NewMockConnectionWithMockTx(log logger.Logger) (Connector, chan string) {
	outputChan := make(chan string, constants.ChanSize)
	return &MockConnectionWithMockTx{Log: log, OutputChan: outputChan}, outputChan
}

func (m *MockConnectionWithMockTx) Begin(ctx context.Context) (Transacter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Begins++
	return &mockTransaction{conn: m}, nil
}

func (m *MockConnectionWithMockTx) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return m.exec(query, args)
}

func (m *MockConnectionWithMockTx) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execSqls = append(m.execSqls, query)
	m.execArgs = append(m.execArgs, args)
	return &mockRow{values: m.QueryRowValues, err: m.QueryRowErr}
}

func (m *MockConnectionWithMockTx) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

func (m *MockConnectionWithMockTx) GetType() string {
	return constants.ConnectionTypePostgres
}

func (m *MockConnectionWithMockTx) GetDmlGenerator() DmlGenerator {
	return &DmlGeneratorTxtBatch{}
}

// ExecSqls returns a copy of the executed statements in order.
func (m *MockConnectionWithMockTx) ExecSqls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.execSqls))
	copy(out, m.execSqls)
	return out
}

// ExecArgs returns a copy of the args supplied with each executed statement.
func (m *MockConnectionWithMockTx) ExecArgs() [][]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]interface{}, len(m.execArgs))
	copy(out, m.execArgs)
	return out
}

func (m *MockConnectionWithMockTx) exec(query string, args []interface{}) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCount++
	if m.FailOnExecNumber > 0 && m.execCount == m.FailOnExecNumber { // if this exec is scripted to fail...
		return nil, errors.Errorf("mock exec failure on statement %v", m.execCount)
	}
	m.execSqls = append(m.execSqls, query)
	m.execArgs = append(m.execArgs, args)
	if m.OutputChan != nil {
		m.OutputChan <- query
	}
	return mockResult{}, nil
}

type mockTransaction struct {
	conn *MockConnectionWithMockTx
	done bool
}

func (t *mockTransaction) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.conn.exec(query, args)
}

func (t *mockTransaction) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("mock transaction is already closed")
	}
	t.done = true
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.Commits++
	return nil
}

func (t *mockTransaction) Rollback(ctx context.Context) error {
	if t.done { // tolerate rollback after commit like the real driver does...
		return nil
	}
	t.done = true
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.Rollbacks++
	return nil
}

type mockResult struct{}

func (mockResult) RowsAffected() int64 {
	return 1
}

type mockRow struct {
	values []interface{}
	err    error
}

func (r *mockRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > len(r.values) {
		return errors.Errorf("mock row has %v values but %v destinations were supplied", len(r.values), len(dest))
	}
	for idx, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Ptr {
			return errors.New("scan destination is not a pointer")
		}
		if r.values[idx] == nil { // if the column is null...
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		dv.Elem().Set(reflect.ValueOf(r.values[idx]))
	}
	return nil
}
