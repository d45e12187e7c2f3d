package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/Jwink3101/dfb/internal/naming"
)

// ScanConfig carries the subset of the configuration object (spec.md §3)
// the source scanner consults: the subdir filter and the empty-dir-marker
// feature flag, plus whether the active compare/rename-detection
// attributes require a content hash per file.
type ScanConfig struct {
	Subdir          string
	EmptyDirMarkers bool
	ComputeHash     bool
}

// ScanSource walks root (optionally restricted to a subdir) and returns
// one SourceEntry per regular file plus, when cfg.EmptyDirMarkers is set,
// one synthesized EMPTY_MARKER entry per directory that spec.md §4.3
// step 1 defines as empty: a directory with no non-directory entries of
// its own, irrespective of what its subdirectories hold.
//
// Apparent paths are root-relative and forward-slash separated; the
// final path segment's Unicode normalization is left to naming.Encode,
// which NFC-normalizes it when building the destination real path.
func ScanSource(ctx context.Context, root string, cfg ScanConfig) ([]SourceEntry, error) {
	scanRoot := root
	if cfg.Subdir != "" {
		scanRoot = filepath.Join(root, filepath.FromSlash(cfg.Subdir))
	}

	info, err := os.Stat(scanRoot)
	if err != nil {
		return nil, fmt.Errorf("core: scanner: stat %s: %w", scanRoot, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("core: scanner: %s is not a directory", scanRoot)
	}

	var entries []SourceEntry

	err = filepath.WalkDir(scanRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("core: scanner: walking %s: %w", p, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if cfg.EmptyDirMarkers && p != root {
				empty, emptyErr := dirHasNoFiles(p)
				if emptyErr != nil {
					return emptyErr
				}

				if empty {
					entries = append(entries, SourceEntry{
						ApparentPath: path.Join(apparentPath(root, p), naming.EMPTY_MARKER),
						Size:         0,
						IsEmptyDir:   true,
					})
				}
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("core: scanner: stat %s: %w", p, err)
		}

		entry := SourceEntry{
			ApparentPath: apparentPath(root, p),
			Size:         fi.Size(),
		}

		mtime := fi.ModTime().UTC().Unix()
		entry.ModTime = &mtime

		if cfg.ComputeHash {
			hash, hashErr := hashFile(p)
			if hashErr != nil {
				return hashErr
			}

			entry.Hash = &hash
		}

		entries = append(entries, entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ApparentPath < entries[j].ApparentPath })

	return entries, nil
}

// apparentPath converts an absolute walked path back to a root-relative,
// forward-slash apparent path.
func apparentPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}

	return filepath.ToSlash(rel)
}

// dirHasNoFiles reports whether dir contains zero non-directory entries
// directly (spec.md §4.3 step 1's literal definition — subdirectories
// with their own files do not disqualify a parent from being "empty").
func dirHasNoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("core: scanner: reading %s: %w", dir, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			return false, nil
		}
	}

	return true, nil
}

// hashFile returns "sha256:" followed by the lowercase hex-encoded
// SHA-256 digest of the file at path. SHA-256 is a standard, portable digest for the generically
// declared "algorithm + hex digest" hash field (spec.md §3); no pack
// library supplies a domain-neutral content hash (see DESIGN.md).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("core: scanner: opening %s for hash: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("core: scanner: hashing %s: %w", path, err)
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
