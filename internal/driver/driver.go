// Package driver defines the transfer driver interface the core backup
// engine uses to reach an arbitrary destination, plus a local-filesystem
// implementation used by the CLI's local-to-local workflows and by this
// package's own tests.
package driver

import (
	"context"
	"time"
)

// Entry describes one object returned by List.
type Entry struct {
	Name    string // real path, relative to the listed root
	Size    int64
	ModTime *time.Time
	Hash    *string
}

// Driver is the transfer surface the core engine consumes. A Driver knows
// nothing about apparent paths, timestamps, or artifact kinds — it moves
// bytes and lists names; the naming/reference codecs translate on either
// side of the boundary.
type Driver interface {
	// List recursively enumerates every object under remoteDir.
	List(ctx context.Context, remoteDir string) ([]Entry, error)

	// CopyTo transfers the local file at srcApparentPath (a path on the
	// source filesystem, not a destination real path) to dstRemoteReal,
	// returning the destination's native modtime/hash if it reports one.
	CopyTo(ctx context.Context, srcApparentPath, dstRemoteReal string) (modTime *time.Time, hash *string, err error)

	// CopyBetween performs a server-side copy from one destination real
	// path to another without reading the bytes through the caller.
	// Implementations that cannot do this return ErrNotSupported.
	CopyBetween(ctx context.Context, srcRemoteReal, dstRemoteReal string) error

	// PutSmall writes data directly to dstRemoteReal. Used for
	// DELETE_MARKER, REFERENCE, and EMPTY_DIR_MARKER payloads, all of
	// which are at most a few hundred bytes.
	PutSmall(ctx context.Context, dstRemoteReal string, data []byte) error

	// Delete removes remoteReal. Deleting an already-absent object is not
	// an error (idempotent, per spec.md §4.7).
	Delete(ctx context.Context, remoteReal string) error

	// GetSmall reads the full contents of remoteReal. Used for REFERENCE
	// and DELETE_MARKER payloads and for sidecar reads.
	GetSmall(ctx context.Context, remoteReal string) ([]byte, error)

	// ConfigPaths returns the local cache directory this driver wants the
	// core to use for its index database and lease file.
	ConfigPaths(ctx context.Context) (cacheDir string, err error)
}
