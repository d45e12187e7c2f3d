package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// SidecarCodec selects the compression used for a snapshot sidecar.
type SidecarCodec string

const (
	CodecGzip SidecarCodec = "gz"
	CodecXZ   SidecarCodec = "xz"
)

// SidecarKind distinguishes a backup run's sidecar from a prune run's.
type SidecarKind string

const (
	SidecarBackup SidecarKind = "backup"
	SidecarPrune  SidecarKind = "prune"
)

// SidecarPath builds the destination-relative path for a sidecar written
// at t for a run of the given kind and codec, per spec.md §6:
// <dest_root>/.dfb/snapshots/<YYYY>/<YYYY-MM-DD>/<HHMMSS>.<kind>.jsonl.<gz|xz>
func SidecarPath(t time.Time, kind SidecarKind, codec SidecarCodec) string {
	t = t.UTC()

	return path.Join(
		".dfb", "snapshots",
		t.Format("2006"),
		t.Format("2006-01-02"),
		fmt.Sprintf("%s.%s.jsonl.%s", t.Format("150405"), kind, codec),
	)
}

// SidecarWriter streams action-dump records through a compressing writer
// into the io.Writer it was created with. It does not choose, create or
// rename any destination path; the caller decides where the compressed
// bytes go.
type SidecarWriter struct {
	dump            *DumpWriter
	closeCompressor func() error
}

// NewSidecarWriter wraps w with the codec's compressor and returns a
// SidecarWriter ready to accept DumpRecords.
func NewSidecarWriter(w io.Writer, codec SidecarCodec) (*SidecarWriter, error) {
	switch codec {
	case CodecGzip:
		gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			return nil, fmt.Errorf("core: sidecar: opening gzip writer: %w", err)
		}

		return &SidecarWriter{dump: NewDumpWriter(gz), closeCompressor: gz.Close}, nil
	case CodecXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("core: sidecar: opening xz writer: %w", err)
		}

		return &SidecarWriter{dump: NewDumpWriter(xw), closeCompressor: xw.Close}, nil
	default:
		return nil, fmt.Errorf("core: sidecar: unknown codec %q", codec)
	}
}

// Write appends one record.
func (sw *SidecarWriter) Write(rec DumpRecord) error {
	return sw.dump.Write(rec)
}

// Close flushes the line-delimited JSON buffer and closes the
// compressor, finalizing the stream.
func (sw *SidecarWriter) Close() error {
	if err := sw.dump.Flush(); err != nil {
		return err
	}

	if err := sw.closeCompressor(); err != nil {
		return fmt.Errorf("core: sidecar: closing compressor: %w", err)
	}

	return nil
}

// SidecarReader decodes a single previously-written sidecar stream,
// auto-detecting the codec from the path's trailing extension.
type SidecarReader struct {
	r io.Reader
}

// OpenSidecar wraps r, a raw byte stream read from sidecarPath (as
// returned by a prior SidecarPath call), selecting the decompressor by
// the path's suffix.
func OpenSidecar(r io.Reader, sidecarPath string) (*SidecarReader, error) {
	switch {
	case strings.HasSuffix(sidecarPath, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("core: sidecar: opening gzip reader: %w", err)
		}

		return &SidecarReader{r: gz}, nil
	case strings.HasSuffix(sidecarPath, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("core: sidecar: opening xz reader: %w", err)
		}

		return &SidecarReader{r: xr}, nil
	default:
		return nil, fmt.Errorf("core: sidecar: unrecognized codec suffix in %q", sidecarPath)
	}
}

// ReadAll decodes every record in the sidecar.
func (sr *SidecarReader) ReadAll(ctx context.Context) ([]DumpRecord, error) {
	return NewDumpReader(sr.r).ReadAll(ctx)
}
