package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/filex"
)

// ObjectStore is the durable home of ciphertext objects. Put never
// replaces an existing object: it fails with common.ErrConflict instead.
type ObjectStore interface {
	Put(ctx context.Context, key, srcPath string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// removeFile is a test seam for os.Remove.
var removeFile = os.Remove

// removePartial deletes a half-written file. A failure means plaintext or
// ciphertext may be left on disk and is reported as common.ErrCleanup.
func removePartial(path string) error {
	if err := removeFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: partial file %s not removed: %v", common.ErrCleanup, path, err)
	}
	return nil
}

// LocalObjectStore keeps objects as files in a single directory.
type LocalObjectStore struct {
	dir string
}

func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalObjectStore{dir: abs}, nil
}

func (s *LocalObjectStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: object key %q", common.ErrInvalidArgument, key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *LocalObjectStore) Put(ctx context.Context, key, srcPath string) (err error) {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", common.ErrPersistence, srcPath, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: object %s already exists", common.ErrConflict, key)
		}
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%w: %v", common.ErrPersistence, cerr)
		}
		if err != nil {
			if rerr := removePartial(dst); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	if _, err = io.Copy(out, src); err != nil {
		return fmt.Errorf("%w: copy %s: %v", common.ErrPersistence, key, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *LocalObjectStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: object %s", common.ErrNotFound, key)
		}
		return err
	}
	return nil
}

func (s *LocalObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
