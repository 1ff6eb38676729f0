package db

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestPools opens migrated write/read pools on a fresh file under
// t.TempDir() and closes them when the test ends.
func OpenTestPools(t *testing.T) *Pools {
	t.Helper()

	pools, err := OpenPools(filepath.Join(t.TempDir(), "meta.sqlite"), 4)
	if err != nil {
		t.Fatalf("open test metastore: %v", err)
	}
	t.Cleanup(func() { _ = pools.Close() })

	if _, err := Migrate(context.Background(), pools.Write, nil); err != nil {
		t.Fatalf("migrate test metastore: %v", err)
	}
	return pools
}
