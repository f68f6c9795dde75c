package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"volunteerledger/internal/store"
)

// OpenDB returns a migrated in-memory SQLite database private to the test.
// It is closed when the test ends.
func OpenDB(t *testing.T) *store.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := store.NewDB(context.Background(), store.SQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
