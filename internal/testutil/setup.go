// Package testutil holds fixtures shared by package tests outside watch.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/memwatch/watch"
)

// LeakTrace allocates 0x1000 and 0x2000 and frees only 0x1000, leaving one
// 32-byte record from a.c:11.
const LeakTrace = `# two allocations, one freed
alloc 0x1000 64 a.c:10
alloc 0x2000 32 a.c:11
free  0x1000 a.c:12
`

// CleanTrace frees everything it allocates.
const CleanTrace = `alloc 0x1000 64 a.c:10
free  0x1000 a.c:12
`

// SetupRegistry creates a registry that is closed when the test ends.
//
// Example:
//
//	r := testutil.SetupRegistry(t, watch.Config{MaxTracked: 2})
//	require.NoError(t, r.NotifyAllocate(0x10, 8, watch.Site{}))
func SetupRegistry(t testing.TB, cfg watch.Config, opts ...watch.Option) *watch.Registry {
	t.Helper()
	r, err := watch.New(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// WriteFile writes content to a file named name in a per-test temporary
// directory and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
