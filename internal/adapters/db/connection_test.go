package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// stubConn is a minimal database/sql/driver stub recording transaction
// outcomes. No statements run through it; ExecuteTransaction only needs
// begin, commit and rollback.
type stubConn struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return &stubTx{conn: c}, nil
}

type stubTx struct {
	conn *stubConn
}

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return nil
}

type stubConnector struct {
	conn *stubConn
}

func (c stubConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return c.conn, nil
}

func (c stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

func stubConnection(t *testing.T) (*Connection, *stubConn) {
	t.Helper()
	sc := &stubConn{}
	database := sql.OpenDB(stubConnector{conn: sc})
	t.Cleanup(func() { database.Close() })
	return &Connection{db: database}, sc
}

func (c *stubConn) counts() (commits, rollbacks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits, c.rollbacks
}

func TestExecuteTransaction_Commits(t *testing.T) {
	conn, sc := stubConnection(t)

	var ran bool
	err := conn.ExecuteTransaction(context.Background(), func(tx *sql.Tx) error {
		ran = true
		return nil
	})
	assert.Nil(t, err)
	check.True(t, ran)

	commits, rollbacks := sc.counts()
	check.Equal(t, 1, commits)
	check.Equal(t, 0, rollbacks)
}

func TestExecuteTransaction_RollsBackOnError(t *testing.T) {
	conn, sc := stubConnection(t)

	boom := errors.New("boom")
	err := conn.ExecuteTransaction(context.Background(), func(tx *sql.Tx) error {
		return boom
	})
	check.Equal(t, boom, err, cmpopts.EquateErrors())

	commits, rollbacks := sc.counts()
	check.Equal(t, 0, commits)
	check.Equal(t, 1, rollbacks)
}

func TestExecuteTransaction_RollsBackOnPanic(t *testing.T) {
	conn, sc := stubConnection(t)

	func() {
		defer func() {
			check.NotNil(t, recover())
		}()
		_ = conn.ExecuteTransaction(context.Background(), func(tx *sql.Tx) error {
			panic("mid-transaction failure")
		})
	}()

	commits, rollbacks := sc.counts()
	check.Equal(t, 0, commits)
	check.Equal(t, 1, rollbacks)
}
