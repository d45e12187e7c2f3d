// Package naming implements the bidirectional mapping between an apparent
// path (the logical, user-facing path a file occupies at a point in time)
// and the real path under which it is actually stored at the destination:
// <parent>/<stem>.<ts14><flag>.<ext_suffix>.
package naming

import (
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Jwink3101/dfb/internal/timecode"
)

// Flag distinguishes the kind of artifact a real path encodes.
type Flag byte

const (
	// FlagNone marks a regular, content-bearing artifact.
	FlagNone Flag = 0
	// FlagReference marks a reference artifact (rename without copy).
	FlagReference Flag = 'R'
	// FlagDelete marks a delete marker.
	FlagDelete Flag = 'D'
)

// EMPTY_MARKER is the fixed leaf filename stamped, per directory, to
// represent an otherwise-empty directory as an artifact of kind
// EMPTY_DIR_MARKER.
//
//nolint:revive,stylecheck // fixed on-disk literal, named to match spec wording
const EMPTY_MARKER = ".dfb-empty"

// timestampRE finds a fourteen-digit field with an optional trailing R/D
// flag anywhere in a filename.
var timestampRE = regexp.MustCompile(`(\d{14})([RD]?)`)

// recognizedExtensions is the set of lower-cased extension components
// (without the leading dot) treated as valid media-type extensions for
// multi-extension stem splitting. Unrecognized trailing components are
// left as part of the stem.
var recognizedExtensions = map[string]bool{
	"gz": true, "bz2": true, "xz": true, "zst": true, "tar": true,
	"tgz": true, "zip": true, "7z": true, "rar": true,
	"json": true, "yaml": true, "yml": true, "toml": true, "xml": true,
	"txt": true, "md": true, "csv": true, "log": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "svg": true,
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"mp3": true, "mp4": true, "mov": true, "avi": true, "mkv": true, "flac": true,
	"go": true, "py": true, "rs": true, "c": true, "h": true, "cpp": true,
	"sql": true, "sh": true, "bak": true, "enc": true, "sig": true, "asc": true,
}

// Encode builds the real path for an apparent path a stamped with
// timestamp t and flag. a's final segment is NFC-normalized before
// splitting so source trees differing only in Unicode normalization form
// never produce distinct real paths.
func Encode(a string, t time.Time, flag Flag) string {
	dir, base := path.Split(a)
	base = norm.NFC.String(base)

	stem, extSuffix := splitExtensions(base)
	ts14 := timecode.FormatArtifact(t)

	name := stem + "." + ts14 + flagSuffix(flag)
	if extSuffix != "" {
		name += "." + extSuffix
	}

	return dir + name
}

// flagSuffix renders flag as its one-character on-disk suffix, or "" for
// FlagNone.
func flagSuffix(flag Flag) string {
	if flag == FlagNone {
		return ""
	}

	return string(rune(flag))
}

// splitExtensions splits base into stem and the trailing extension suffix
// per the multi-extension rule: the first extension is always taken, and
// each subsequent extension is included only while it is itself in the
// recognized set (so "archive.tar.gz" splits as stem="archive",
// ext="tar.gz", but "my.project.txt" splits as stem="my.project",
// ext="txt" since "project" is not recognized).
func splitExtensions(base string) (stem, extSuffix string) {
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return base, ""
	}

	// parts[0] may be empty for dotfiles like ".bashrc"; treat the whole
	// name as the stem with no extension in that single-dot case.
	if len(parts) == 2 && parts[0] == "" {
		return base, ""
	}

	n := len(parts)
	extParts := []string{parts[n-1]}
	i := n - 2

	for i > 0 {
		candidate := parts[i]
		if !recognizedExtensions[strings.ToLower(candidate)] {
			break
		}

		extParts = append([]string{candidate}, extParts...)
		i--
	}

	stem = strings.Join(parts[:i+1], ".")
	extSuffix = strings.Join(extParts, ".")

	return stem, extSuffix
}

// Decode parses a real path back into its apparent path, timestamp, and
// flag. It recognizes any fourteen-digit field with an optional trailing
// R/D as the timestamp component. If no such field is found the file is
// treated as a user-placed artifact and passed through unchanged:
// apparent equals real, flag is FlagNone, and hasTimestamp is false so the caller knows to fall back to the driver's modtime (or the
// current time).
func Decode(realPath string) (apparent string, t time.Time, flag Flag, hasTimestamp bool) {
	dir, base := path.Split(realPath)

	loc := timestampRE.FindStringSubmatchIndex(base)
	if loc == nil {
		return realPath, time.Time{}, FlagNone, false
	}

	ts14 := base[loc[2]:loc[3]]
	flagStr := base[loc[4]:loc[5]]

	parsed, ok := timecode.ParseArtifact(ts14)
	if !ok {
		return realPath, time.Time{}, FlagNone, false
	}

	var f Flag
	switch flagStr {
	case "R":
		f = FlagReference
	case "D":
		f = FlagDelete
	default:
		f = FlagNone
	}

	before := base[:loc[0]]
	after := base[loc[5]:]

	stem := strings.TrimSuffix(before, ".")
	ext := strings.TrimPrefix(after, ".")

	name := stem
	if ext != "" {
		name += "." + ext
	}

	return dir + name, parsed, f, true
}

// IsEmptyMarker reports whether apparent's final path segment is the
// fixed empty-directory marker leaf.
func IsEmptyMarker(apparent string) bool {
	_, base := path.Split(apparent)

	return base == EMPTY_MARKER
}

// ValidRune reports whether r is safe to appear in an apparent path
// segment without interfering with real-path encoding (rejects the path
// separator, the NUL byte and utf8.RuneError; everything else, including
// non-ASCII Unicode, is permitted).
func ValidRune(r rune) bool {
	return r != '/' && r != 0 && r != utf8.RuneError
}
