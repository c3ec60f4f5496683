// Package local_test tests the local filesystem snapshot store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pipelinewatch/internal/storage"
	"github.com/JakeFAU/pipelinewatch/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "csv")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: path})
		assert.Error(t, err)
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "stereoTop_PipelineWatch.csv", []byte("date\n2019-01-01\n")))
	require.NoError(t, store.Save(ctx, "stereoTop_PipelineWatch.csv", []byte("date\n2019-01-02\n")))

	got, err := store.Load(ctx, "stereoTop_PipelineWatch.csv")
	require.NoError(t, err)
	assert.Equal(t, "date\n2019-01-02\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files must not be left behind")
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "flirIrCamera_PipelineWatch.csv")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveFailureKeepsPreviousSnapshot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "p.csv", []byte("old")))

	// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() {
		// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
		_ = os.Chmod(dir, 0o700)
	})

	require.Error(t, store.Save(ctx, "p.csv", []byte("new")))
	got, err := store.Load(ctx, "p.csv")
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, store.Save(ctx, "../escape.csv", []byte("x")))
	_, err = store.Load(ctx, "../../etc/passwd")
	require.Error(t, err)
	require.Error(t, store.Save(ctx, "", []byte("x")))
}

func TestTryLockIsExclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	second, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	require.NoError(t, first.TryLock())
	require.Error(t, second.TryLock())
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

var _ storage.Provider = (*local.Store)(nil)
