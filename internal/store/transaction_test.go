package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransactionBeginFailure(t *testing.T) {
	t.Parallel()

	// A closed pool fails BeginTx before touching the network, which is
	// enough to exercise the error wrapping.
	db, err := sql.Open("pgx", "postgres://localhost:5432/unused")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
		t.Fatal("transaction body must not run when begin fails")
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionFailed)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "transaction", storeErr.Entity)
	assert.Equal(t, "begin", storeErr.Operation)
}
