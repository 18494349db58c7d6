// Package storetest provides a throwaway in-memory store for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sealedbid/internal/database/db_client"
	"sealedbid/internal/database/schema"
	"sealedbid/internal/store"
)

// New opens an in-memory SQLite database with the full schema applied. The
// database is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	db, err := db_client.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.Apply(context.Background(), db, string(store.SQLite)))
	return store.New(db, store.SQLite)
}
