package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// NewMockTxDB returns a database whose only job is to hand out real
// *sql.Tx values to services whose repositories are in-memory fakes.
// Up to n transactions may begin, and each may commit or roll back.
func NewMockTxDB(t *testing.T, n int) *sql.DB {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewMockTxxDB is NewMockTxDB for services that begin sqlx transactions.
func NewMockTxxDB(t *testing.T, n int) *sqlx.DB {
	t.Helper()
	return sqlx.NewDb(NewMockTxDB(t, n), "mysql")
}
