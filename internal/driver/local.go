package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Local is a filesystem-backed Driver rooted at a destination directory.
// It is the reference implementation the spec treats as an external
// collaborator (§1, §6): every path it accepts is a real path relative to
// Root, using forward slashes regardless of host OS (destinations are
// expected to behave like object stores, not native filesystems).
type Local struct {
	Root     string
	CacheDir string
	logger   *slog.Logger
}

// NewLocal returns a Local driver rooted at root, creating root and
// cacheDir if they do not already exist.
func NewLocal(root, cacheDir string, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("driver: create root %s: %w", root, err)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("driver: create cache dir %s: %w", cacheDir, err)
	}

	return &Local{Root: root, CacheDir: cacheDir, logger: logger}, nil
}

func (l *Local) abs(remotePath string) string {
	return filepath.Join(l.Root, filepath.FromSlash(remotePath))
}

// List recursively enumerates every regular file under remoteDir,
// relative to l.Root, using forward-slash-separated names.
func (l *Local) List(ctx context.Context, remoteDir string) ([]Entry, error) {
	root := l.abs(remoteDir)

	var entries []Entry

	walkErr := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}

			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(l.Root, p)
		if err != nil {
			return err
		}

		mt := info.ModTime().UTC()

		entries = append(entries, Entry{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: &mt,
		})

		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, os.ErrNotExist) {
		return nil, &Error{Op: "list", Path: remoteDir, Err: walkErr}
	}

	return entries, nil
}

// CopyTo copies the local source file at srcApparentPath into the
// destination root at dstRemoteReal.
func (l *Local) CopyTo(ctx context.Context, srcApparentPath, dstRemoteReal string) (*time.Time, *string, error) {
	dst := l.abs(dstRemoteReal)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	src, err := os.Open(srcApparentPath)
	if err != nil {
		return nil, nil, &Error{Op: "copy_to", Path: srcApparentPath, Err: err}
	}
	defer src.Close()

	tmp := dst + ".partial"

	out, err := os.Create(tmp)
	if err != nil {
		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)

		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)

		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	if err := ctx.Err(); err != nil {
		os.Remove(tmp)

		return nil, nil, err
	}

	if err := os.Rename(tmp, dst); err != nil {
		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, nil, &Error{Op: "copy_to", Path: dstRemoteReal, Err: err}
	}

	mt := info.ModTime().UTC()

	return &mt, nil, nil
}

// CopyBetween performs a local server-side copy: a plain filesystem copy
// between two locations under the same root, without routing bytes
// through the caller.
func (l *Local) CopyBetween(ctx context.Context, srcRemoteReal, dstRemoteReal string) error {
	src := l.abs(srcRemoteReal)
	dst := l.abs(dstRemoteReal)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &Error{Op: "copy_between", Path: dstRemoteReal, Err: err}
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Op: "copy_between", Path: srcRemoteReal, Err: ErrNotFound}
		}

		return &Error{Op: "copy_between", Path: srcRemoteReal, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return &Error{Op: "copy_between", Path: dstRemoteReal, Err: err}
	}

	return nil
}

// PutSmall writes data to dstRemoteReal, creating parent directories as
// needed.
func (l *Local) PutSmall(ctx context.Context, dstRemoteReal string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := l.abs(dstRemoteReal)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &Error{Op: "put_small", Path: dstRemoteReal, Err: err}
	}

	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return &Error{Op: "put_small", Path: dstRemoteReal, Err: err}
	}

	return nil
}

// Delete removes remoteReal. Deleting an object that does not exist is
// not an error.
func (l *Local) Delete(ctx context.Context, remoteReal string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.abs(remoteReal)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "delete", Path: remoteReal, Err: err}
	}

	return nil
}

// GetSmall reads the full contents of remoteReal.
func (l *Local) GetSmall(ctx context.Context, remoteReal string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.abs(remoteReal))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Op: "get_small", Path: remoteReal, Err: ErrNotFound}
		}

		return nil, &Error{Op: "get_small", Path: remoteReal, Err: err}
	}

	return data, nil
}

// ConfigPaths returns the cache directory this driver was constructed
// with.
func (l *Local) ConfigPaths(ctx context.Context) (string, error) {
	return l.CacheDir, nil
}

var _ Driver = (*Local)(nil)
