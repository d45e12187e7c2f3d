// Package store persists the artifact index in an embedded SQLite
// database: one row per ArtifactRecord, plus run aggregates and a
// per-config-ID configuration-fingerprint snapshot.
package store

// Kind classifies an artifact record.
type Kind string

const (
	KindRegular        Kind = "REGULAR"
	KindDeleteMarker   Kind = "DELETE_MARKER"
	KindReference      Kind = "REFERENCE"
	KindEmptyDirMarker Kind = "EMPTY_DIR_MARKER"
)

// DeletedSizeSentinel is the negative size value recorded for
// DELETE_MARKER rows, which have no content.
const DeletedSizeSentinel = -1

// ArtifactRecord is the authoritative per-version unit of the index: one
// row per (apparent_path, timestamp) pair.
type ArtifactRecord struct {
	ApparentPath string
	RealPath     string
	Timestamp    int64 // UTC seconds since epoch
	Kind         Kind
	Size         int64

	// ModTime is the source mtime in UTC seconds at capture, if known.
	ModTime *int64

	// Hash is "algorithm:hexdigest", if known.
	Hash *string

	// ReferentRealPath is set only for REFERENCE rows: the real_path this
	// version points at.
	ReferentRealPath *string

	DstMetadataPresent bool

	// PendingPrune marks a row annotated for deletion by C7 but not yet
	// confirmed removed at the destination.
	PendingPrune bool
}

// IsReference reports whether r is a REFERENCE row.
func (r ArtifactRecord) IsReference() bool {
	return r.Kind == KindReference
}

// IsDeleteMarker reports whether r is a DELETE_MARKER row.
func (r ArtifactRecord) IsDeleteMarker() bool {
	return r.Kind == KindDeleteMarker
}

// RunRecord aggregates one backup run for reporting and sidecar naming.
type RunRecord struct {
	Timestamp     int64
	HostID        string
	ConfigID      string
	CountsByKind  map[string]int64
	ElapsedMillis int64
}

// ConfigSnapshot records the fingerprint of the configuration object last
// saved for a config ID through SaveConfigSnapshot. Refresh and backup do
// not read or write it, so no drift between configurations is detected.
type ConfigSnapshot struct {
	ConfigID    string
	Fingerprint string
	UpdatedUnix int64
}
