// Package storage holds the repository content store and the durable
// stores for ciphertext objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/keyescrow/internal/archivex"
	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/filex"
	"github.com/google/uuid"
)

// FilesystemStore keeps repository trees under a root directory and writes
// transient artifacts (archives, staged ciphertext) into a work directory.
// Callers must validate repository names before handing them in.
type FilesystemStore struct {
	root string
	work string
}

func NewFilesystemStore(repositoriesRoot, workDir string) (*FilesystemStore, error) {
	root, err := filex.EnsureDir(repositoriesRoot)
	if err != nil {
		return nil, err
	}
	work, err := filex.EnsureDir(workDir)
	if err != nil {
		return nil, err
	}
	return &FilesystemStore{root: root, work: work}, nil
}

func (s *FilesystemStore) RepositoryExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return filex.IsDir(filepath.Join(s.root, name))
}

// CreateRepositoryDir creates the content directory of a new repository.
func (s *FilesystemStore) CreateRepositoryDir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Mkdir(filepath.Join(s.root, name), 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: repository directory %s", common.ErrConflict, name)
		}
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

// RemoveRepositoryDir deletes an empty repository directory.
func (s *FilesystemStore) RemoveRepositoryDir(name string) error {
	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", common.ErrCleanup, err)
	}
	return nil
}

// ArchiveDirectory packs the repository into a fresh "<alias>-*.tar.gz" in
// the work directory and returns its path. Nothing is left behind on failure.
func (s *FilesystemStore) ArchiveDirectory(ctx context.Context, name, tag string) (path string, err error) {
	f, err := os.CreateTemp(s.work, common.MakeAlias(name, tag)+"-*"+common.ArchiveSuffix)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	path = f.Name()

	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
		if err != nil {
			if rerr := removePartial(path); rerr != nil {
				err = errors.Join(err, rerr)
			}
			path = ""
		}
	}()

	if err = archivex.PackDirectory(ctx, s.root, name, f); err != nil {
		return path, err
	}
	return path, f.Sync()
}

// StagingPath returns a unique, not yet existing path in the work
// directory for the ciphertext of alias.
func (s *FilesystemStore) StagingPath(alias string) string {
	return filepath.Join(s.work, alias+"-"+uuid.NewString()+common.CipherObjectSuffix)
}

// DeleteFile removes a transient file. Missing files are not an error.
func (s *FilesystemStore) DeleteFile(path string) error {
	return filex.RemoveFile(path)
}
