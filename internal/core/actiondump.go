package core

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// DumpKind enumerates the action-dump record kinds (spec.md §4.9, §6).
type DumpKind string

const (
	DumpUpload          DumpKind = "UPLOAD"
	DumpMoveByReference DumpKind = "MOVE_BY_REFERENCE"
	DumpMoveByCopy      DumpKind = "MOVE_BY_COPY"
	DumpDelete          DumpKind = "DELETE"
	DumpPrune           DumpKind = "PRUNE"
	DumpComment         DumpKind = "COMMENT"
)

// DumpRecord is one decoded line of an action dump or a snapshot sidecar,
// wide enough to round-trip any of the kinds in spec.md §6. Fields unused
// by a given Kind are left zero.
type DumpRecord struct {
	Kind DumpKind

	ApparentPath string `json:"apath,omitempty"`
	RealPath     string `json:"rpath,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ModTime      *int64 `json:"mtime,omitempty"`

	// MOVE_BY_REFERENCE / MOVE_BY_COPY fields.
	IsReference  bool   `json:"isref,omitempty"`
	ReferentPath string `json:"ref_rpath,omitempty"`
	SourcePath   string `json:"source_rpath,omitempty"`
	Original     string `json:"original,omitempty"`

	// COMMENT: freeform, preserved verbatim and ignored on read.
	Comment map[string]any `json:"-"`
}

// wireRecord is the literal on-disk shape: a version/action envelope plus
// whichever kind-specific fields apply. Using one struct for every kind
// keeps encode/decode symmetric with the flat key sets spec.md §6 lists
// per kind (no kind nests another's fields).
type wireRecord struct {
	V      int    `json:"_V"`
	Action string `json:"_action"`

	ApparentPath string `json:"apath,omitempty"`
	RealPath     string `json:"rpath,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Size         int64  `json:"size"`
	ModTime      *int64 `json:"mtime,omitempty"`

	IsRef        *bool  `json:"isref,omitempty"`
	ReferentPath string `json:"ref_rpath,omitempty"`
	SourcePath   string `json:"source_rpath,omitempty"`
	Original     string `json:"original,omitempty"`
}

const dumpFormatVersion = 1

// DumpWriter appends DumpRecords as line-delimited JSON to an underlying
// writer (typically a gzip or xz stream opened by the sidecar package).
type DumpWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewDumpWriter wraps w.
func NewDumpWriter(w io.Writer) *DumpWriter {
	bw := bufio.NewWriter(w)

	return &DumpWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write appends one record as a single JSON line.
func (dw *DumpWriter) Write(rec DumpRecord) error {
	wr := wireRecord{V: dumpFormatVersion, Action: string(rec.Kind), Size: rec.Size}

	switch rec.Kind {
	case DumpUpload:
		wr.ApparentPath = rec.ApparentPath
		wr.RealPath = rec.RealPath
		wr.Timestamp = rec.Timestamp
		wr.ModTime = rec.ModTime
	case DumpMoveByReference:
		t := true
		wr.RealPath = rec.RealPath
		wr.ApparentPath = rec.ApparentPath
		wr.Timestamp = rec.Timestamp
		wr.ModTime = rec.ModTime
		wr.IsRef = &t
		wr.ReferentPath = rec.ReferentPath
		wr.Original = rec.Original
	case DumpMoveByCopy:
		f := false
		wr.RealPath = rec.RealPath
		wr.ApparentPath = rec.ApparentPath
		wr.Timestamp = rec.Timestamp
		wr.ModTime = rec.ModTime
		wr.IsRef = &f
		wr.SourcePath = rec.SourcePath
		wr.Original = rec.Original
	case DumpDelete:
		wr.RealPath = rec.RealPath
		wr.ApparentPath = rec.ApparentPath
		wr.Timestamp = rec.Timestamp
		wr.Size = -1
	case DumpPrune:
		wr.RealPath = rec.RealPath
	case DumpComment:
		if err := dw.writeComment(rec.Comment); err != nil {
			return err
		}

		return nil
	default:
		return fmt.Errorf("core: actiondump: unknown record kind %q", rec.Kind)
	}

	if err := dw.enc.Encode(wr); err != nil {
		return fmt.Errorf("core: actiondump: encoding %s record: %w", rec.Kind, err)
	}

	return nil
}

func (dw *DumpWriter) writeComment(fields map[string]any) error {
	line := map[string]any{"_V": dumpFormatVersion, "_action": "comment"}
	for k, v := range fields {
		line[k] = v
	}

	if err := dw.enc.Encode(line); err != nil {
		return fmt.Errorf("core: actiondump: encoding comment record: %w", err)
	}

	return nil
}

// Flush flushes the buffered writer. Callers must call Flush (or Close,
// if the underlying writer supports it) before relying on the stream
// being fully written.
func (dw *DumpWriter) Flush() error {
	if err := dw.w.Flush(); err != nil {
		return fmt.Errorf("core: actiondump: flush: %w", err)
	}

	return nil
}

// DumpReader reads DumpRecords one line at a time.
type DumpReader struct {
	scanner *bufio.Scanner
}

// NewDumpReader wraps r.
func NewDumpReader(r io.Reader) *DumpReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	return &DumpReader{scanner: scanner}
}

// ReadAll decodes every line, skipping (not erroring on) COMMENT records
// per spec.md §6.
func (dr *DumpReader) ReadAll(ctx context.Context) ([]DumpRecord, error) {
	var out []DumpRecord

	for dr.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := dr.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wr wireRecord
		if err := json.Unmarshal(line, &wr); err != nil {
			return nil, fmt.Errorf("core: actiondump: decoding line: %w", err)
		}

		if wr.Action == "comment" {
			continue
		}

		rec := DumpRecord{
			Kind:         DumpKind(wr.Action),
			ApparentPath: wr.ApparentPath,
			RealPath:     wr.RealPath,
			Timestamp:    wr.Timestamp,
			Size:         wr.Size,
			ModTime:      wr.ModTime,
			ReferentPath: wr.ReferentPath,
			SourcePath:   wr.SourcePath,
			Original:     wr.Original,
		}

		if wr.IsRef != nil {
			rec.IsReference = *wr.IsRef
		}

		out = append(out, rec)
	}

	if err := dr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("core: actiondump: scanning: %w", err)
	}

	return out, nil
}
