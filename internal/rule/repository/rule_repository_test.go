package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveRuleStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{
		"id", "product_variant_id", "warehouse_id", "min_qty", "max_qty",
		"reorder_qty", "preferred_supplier_id", "lead_time_days", "is_active", "current_qty",
	}
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reorder_rules r").WillReturnRows(
		sqlmock.NewRows(columns).
			AddRow(1, 10, 1, 20, 100, nil, 5, 7, true, 3).
			AddRow(2, 11, 1, 10, 50, 25, nil, 0, true, 40),
	)
	mock.ExpectCommit()

	repo := NewRuleRepository(sqlx.NewDb(db, "mysql"))
	got, err := repo.ActiveRuleStock(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(10), got[0].Rule.VariantID)
	assert.Nil(t, got[0].Rule.ReorderQty)
	require.NotNil(t, got[0].Rule.PreferredSupplierID)
	assert.Equal(t, int64(5), *got[0].Rule.PreferredSupplierID)
	assert.True(t, got[0].Breached())

	require.NotNil(t, got[1].Rule.ReorderQty)
	assert.Equal(t, 25, *got[1].Rule.ReorderQty)
	assert.Nil(t, got[1].Rule.PreferredSupplierID)
	assert.False(t, got[1].Breached())

	assert.NoError(t, mock.ExpectationsWereMet())
}
