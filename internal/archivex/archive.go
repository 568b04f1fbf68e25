// Package archivex packs a repository directory into a deterministic
// gzip-compressed tar stream and unpacks such archives back to disk.
package archivex

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
)

// epoch is stamped on every header so identical trees produce identical bytes.
var epoch = time.Unix(0, 0).UTC()

var errUnsafePath = errors.New("archive entry escapes destination")

// PackDirectory writes rootPath/name to dst as a tar.gz stream. Entries are
// stored as "<name>/<relative path>" in lexical order with ownership and
// timestamps cleared. Only directories and regular files are archived.
func PackDirectory(ctx context.Context, rootPath, name string, dst io.Writer) error {
	src := filepath.Join(rootPath, name)

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: directory %s", common.ErrNotFound, src)
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", common.ErrNotFound, src)
	}

	gz := gzip.NewWriter(dst)
	gz.ModTime = epoch
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		entry := name
		if rel != "." {
			entry = path.Join(name, filepath.ToSlash(rel))
		}

		return addEntry(tw, p, entry, d)
	})
	if walkErr != nil {
		return fmt.Errorf("pack %s: %w", name, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, p, entry string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    entry,
		Mode:    int64(info.Mode().Perm()),
		ModTime: epoch,
		Format:  tar.FormatPAX,
	}

	if d.IsDir() {
		header.Typeflag = tar.TypeDir
		header.Name += "/"
		return tw.WriteHeader(header)
	}

	header.Typeflag = tar.TypeReg
	header.Size = info.Size()

	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := io.CopyN(tw, f, header.Size); err != nil {
		return fmt.Errorf("writing file contents: %w", err)
	}
	return nil
}

// UnpackArchive extracts archivePath into a new directory under destRoot
// named after the archive (base name without ".tar.gz"). The leading path
// component of each entry is replaced by that directory. An existing
// destination is never overwritten. On failure the partially extracted
// directory is removed.
func UnpackArchive(ctx context.Context, archivePath, destRoot string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(archivePath), common.ArchiveSuffix)
	if stem == "" || stem == filepath.Base(archivePath) {
		return "", fmt.Errorf("%w: %s is not a %s archive", common.ErrInvalidArgument, archivePath, common.ArchiveSuffix)
	}

	dest := filepath.Join(destRoot, stem)
	if err := os.Mkdir(dest, 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s already exists", common.ErrConflict, dest)
		}
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	if err := extract(ctx, archivePath, dest); err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}
	return dest, nil
}

func extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := targetPath(dest, header.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o700); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, header); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported entry type %q for %s", common.ErrInvalidArgument, header.Typeflag, header.Name)
		}
	}
}

// targetPath maps an entry name onto dest, dropping its first component.
func targetPath(dest, name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}

	_, rest, _ := strings.Cut(clean, "/")
	target := filepath.Join(dest, filepath.FromSlash(rest))

	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return target, nil
}

func writeEntry(r io.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(header.Mode).Perm()|0o600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.CopyN(out, r, header.Size); err != nil {
		out.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	return out.Close()
}
