package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "stockwise/internal/errors"
)

func init() {
	backoffBase = time.Millisecond
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&driver.MySQLError{Number: 1213}))
	assert.True(t, IsRetryable(&driver.MySQLError{Number: 1205}))
	assert.False(t, IsRetryable(&driver.MySQLError{Number: 1062}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&driver.MySQLError{Number: 1062}))
	assert.False(t, IsDuplicateKey(&driver.MySQLError{Number: 1213}))
}

func TestRetry_SucceedsAfterDeadlock(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, zap.NewNop(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &driver.MySQLError{Number: 1213}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustedReturnsDeadlockError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, zap.NewNop(), func(ctx context.Context) error {
		calls++
		return &driver.MySQLError{Number: 1205}
	})

	assert.Equal(t, 2, calls)
	_, ok := apperrors.IsDeadlockError(err)
	assert.True(t, ok)
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), 3, zap.NewNop(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, boom, err)
}

func TestDSN(t *testing.T) {
	dsn := DSN(configFor("db.local", 3307))
	assert.Contains(t, dsn, "tcp(db.local:3307)")
	assert.Contains(t, dsn, "parseTime=true")
}
