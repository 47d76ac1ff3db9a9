package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/contentguard/contentguard/internal/store"
	"github.com/contentguard/contentguard/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "guard.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Bootstrap(db); err != nil {
		t.Fatalf("sqlite bootstrap: %v", err)
	}
	return New(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}
