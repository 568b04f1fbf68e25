package archivex

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"proj1/README.md":       "# proj1\n",
		"proj1/src/main.go":     "package main\n",
		"proj1/src/lib/util.go": "package lib\n",
		"proj1/.git/HEAD":       "ref: refs/heads/main\n",
		"other/ignored.txt":     "not packed",
	}
	for p, body := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj1", "empty"), 0o755))
	return root
}

func entryNames(t *testing.T, blob []byte) []string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Zero(t, h.Uid)
		assert.Zero(t, h.Gid)
		assert.Empty(t, h.Uname)
		names = append(names, h.Name)
	}
	return names
}

func TestPackDirectory_Layout(t *testing.T) {
	root := makeTree(t)

	var buf bytes.Buffer
	require.NoError(t, PackDirectory(context.Background(), root, "proj1", &buf))

	assert.Equal(t, []string{
		"proj1/",
		"proj1/.git/",
		"proj1/.git/HEAD",
		"proj1/README.md",
		"proj1/empty/",
		"proj1/src/",
		"proj1/src/lib/",
		"proj1/src/lib/util.go",
		"proj1/src/main.go",
	}, entryNames(t, buf.Bytes()))
}

func TestPackDirectory_Deterministic(t *testing.T) {
	root := makeTree(t)

	var a, b bytes.Buffer
	require.NoError(t, PackDirectory(context.Background(), root, "proj1", &a))

	// touching mtimes must not change the output
	later := filepath.Join(root, "proj1", "README.md")
	require.NoError(t, os.Chtimes(later, epoch.AddDate(30, 0, 0), epoch.AddDate(30, 0, 0)))

	require.NoError(t, PackDirectory(context.Background(), root, "proj1", &b))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestPackDirectory_MissingOrNotDir(t *testing.T) {
	root := makeTree(t)

	err := PackDirectory(context.Background(), root, "nope", io.Discard)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = PackDirectory(context.Background(), filepath.Join(root, "proj1"), "README.md", io.Discard)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPackDirectory_Cancelled(t *testing.T) {
	root := makeTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PackDirectory(ctx, root, "proj1", io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnpackArchive_RoundTrip(t *testing.T) {
	root := makeTree(t)
	work := t.TempDir()

	archive := filepath.Join(work, "proj1_v1"+common.ArchiveSuffix)
	f, err := os.Create(archive)
	require.NoError(t, err)
	require.NoError(t, PackDirectory(context.Background(), root, "proj1", f))
	require.NoError(t, f.Close())

	restoreRoot := t.TempDir()
	dir, err := UnpackArchive(context.Background(), archive, restoreRoot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(restoreRoot, "proj1_v1"), dir)

	got, err := os.ReadFile(filepath.Join(dir, "src", "lib", "util.go"))
	require.NoError(t, err)
	assert.Equal(t, "package lib\n", string(got))

	info, err := os.Stat(filepath.Join(dir, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = UnpackArchive(context.Background(), archive, restoreRoot)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestUnpackArchive_RejectsWrongSuffix(t *testing.T) {
	_, err := UnpackArchive(context.Background(), filepath.Join(t.TempDir(), "proj1.zip"), t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestUnpackArchive_RejectsTraversal(t *testing.T) {
	work := t.TempDir()
	archive := filepath.Join(work, "evil"+common.ArchiveSuffix)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "evil/../../escape.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o600))

	dest := t.TempDir()
	_, err = UnpackArchive(context.Background(), archive, dest)
	assert.ErrorIs(t, err, errUnsafePath)

	_, statErr := os.Stat(filepath.Join(dest, "evil"))
	assert.True(t, os.IsNotExist(statErr), "partial destination removed")
}

func TestTargetPath(t *testing.T) {
	dest := filepath.Join(string(os.PathSeparator), "restore", "proj1_v1")

	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "root dir", entry: "proj1/", want: dest},
		{name: "nested file", entry: "proj1/src/main.go", want: filepath.Join(dest, "src", "main.go")},
		{name: "absolute", entry: "/proj1/a", want: filepath.Join(dest, "a")},
		{name: "parent escape", entry: "../x", wantErr: true},
		{name: "inner escape", entry: "proj1/../../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := targetPath(dest, tt.entry)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
