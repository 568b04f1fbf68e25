package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) (*FilesystemStore, string, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "repos")
	work := filepath.Join(base, "work")
	s, err := NewFilesystemStore(root, work)
	require.NoError(t, err)
	return s, root, work
}

func TestFilesystemStore_CreateAndExists(t *testing.T) {
	s, root, _ := newFS(t)
	ctx := context.Background()

	ok, err := s.RepositoryExists(ctx, "proj1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreateRepositoryDir(ctx, "proj1"))
	ok, err = s.RepositoryExists(ctx, "proj1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, s.CreateRepositoryDir(ctx, "proj1"), common.ErrConflict)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), nil, 0o600))
	ok, err = s.RepositoryExists(ctx, "file")
	require.NoError(t, err)
	assert.False(t, ok, "plain files are not repositories")

	require.NoError(t, s.RemoveRepositoryDir("proj1"))
	require.NoError(t, s.RemoveRepositoryDir("proj1"))
}

func TestFilesystemStore_ArchiveDirectory(t *testing.T) {
	s, root, work := newFS(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj1", "src"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj1", "src", "a.txt"), []byte("a"), 0o600))

	p1, err := s.ArchiveDirectory(ctx, "proj1", "v1")
	require.NoError(t, err)
	p2, err := s.ArchiveDirectory(ctx, "proj1", "v1")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "concurrent runs never share a file")
	for _, p := range []string{p1, p2} {
		assert.Equal(t, work, filepath.Dir(p))
		assert.True(t, strings.HasPrefix(filepath.Base(p), "proj1_v1-"))
		assert.True(t, strings.HasSuffix(p, common.ArchiveSuffix))
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	require.NoError(t, s.DeleteFile(p1))
	require.NoError(t, s.DeleteFile(p1), "deleting twice is fine")
	_, err = os.Stat(p1)
	assert.True(t, os.IsNotExist(err))
}

func TestFilesystemStore_ArchiveDirectory_MissingLeavesNothing(t *testing.T) {
	s, _, work := newFS(t)

	p, err := s.ArchiveDirectory(context.Background(), "ghost", "v1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, p)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFilesystemStore_ArchiveDirectory_ReportsLeftover(t *testing.T) {
	s, _, work := newFS(t)

	old := removeFile
	t.Cleanup(func() { removeFile = old })
	removeFile = func(string) error { return errors.New("read-only file system") }

	p, err := s.ArchiveDirectory(context.Background(), "ghost", "v1")
	assert.Empty(t, p)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, err, common.ErrCleanup)
	assert.ErrorContains(t, err, work)
}

func TestFilesystemStore_StagingPath(t *testing.T) {
	s, _, work := newFS(t)

	a := s.StagingPath("proj1_v1")
	b := s.StagingPath("proj1_v1")
	assert.NotEqual(t, a, b)
	assert.Equal(t, work, filepath.Dir(a))
	assert.True(t, strings.HasSuffix(a, common.CipherObjectSuffix))
}
