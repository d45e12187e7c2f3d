// Package timecode parses user-facing time expressions and formats the
// fixed on-artifact timestamp stamp used by the naming codec.
package timecode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ArtifactLayout is the fixed, separator-free UTC timestamp format stamped
// onto every artifact real path: fourteen digits, YYYYMMDDHHMMSS.
const ArtifactLayout = "20060102150405"

// ErrInvalidExpression is returned when a user time expression cannot be
// parsed by any of the recognized grammars.
var ErrInvalidExpression = errors.New("timecode: invalid time expression")

// relativeUnit maps a relative-expression unit name to its duration.
var relativeUnit = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// relativeTermRE matches one "<count><unit>" term within a relative
// expression, e.g. "2days" or "1week". Terms may appear in any order and
// are summed.
var relativeTermRE = regexp.MustCompile(`(?i)(\d+)\s*(second|minute|hour|day|week)s?`)

// unixRE matches the raw Unix-seconds form: "u" followed by digits.
var unixRE = regexp.MustCompile(`^u(\d+)$`)

// isoLayouts are tried in order against a normalized ISO-8601-ish string.
// Separators are normalized before matching, so this list only needs to
// cover the presence/absence of an offset and of time-of-day.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse interprets a user-facing time expression relative to now, returning
// the absolute UTC instant it denotes. Recognized forms:
//
//   - "now"
//   - "u<unix-seconds>"
//   - a relative expression combining seconds|minutes|hours|days|weeks in
//     any order, e.g. "3days12hours"
//   - ISO-8601 with optional "T"/space separator, optional ":"/"-", and an
//     optional numeric offset or "Z"; when no offset is given the string is
//     interpreted in loc as it stood at the referenced instant (so
//     historical DST transitions are honored, not loc's current offset).
func Parse(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	if strings.EqualFold(s, "now") {
		return now.UTC(), nil
	}

	if m := unixRE.FindStringSubmatch(s); m != nil {
		secs, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, s, err)
		}

		return time.Unix(secs, 0).UTC(), nil
	}

	if t, ok := parseRelative(s, now); ok {
		return t, nil
	}

	if t, ok := parseISO(s, loc); ok {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidExpression, s)
}

// parseRelative sums every "<count><unit>" term found in s and subtracts
// the total from now. Returns ok=false if no term matched (so the caller
// can fall through to ISO parsing).
func parseRelative(s string, now time.Time) (time.Time, bool) {
	matches := relativeTermRE.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return time.Time{}, false
	}

	// Reject strings with characters outside the matched terms (plus
	// whitespace) so "2024-01-02" (which contains no unit words) or
	// garbage trailing text is not silently accepted as relative.
	consumed := 0
	for _, m := range matches {
		consumed += len(strings.Join(strings.Fields(m[0]), ""))
	}

	if consumed != len(strings.Join(strings.Fields(s), "")) {
		return time.Time{}, false
	}

	var total time.Duration

	for _, m := range matches {
		count, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}

		unit, ok := relativeUnit[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}

		total += time.Duration(count) * unit
	}

	return now.Add(-total).UTC(), true
}

// parseISO normalizes separator variants and tries each recognized layout.
func parseISO(s string, loc *time.Location) (time.Time, bool) {
	normalized := normalizeISO(s)

	for _, layout := range isoLayouts {
		hasOffset := strings.Contains(layout, "Z07:00")

		if hasOffset {
			if t, err := time.Parse(layout, normalized); err == nil {
				return t, true
			}

			continue
		}

		if loc == nil {
			loc = time.UTC
		}

		if t, err := time.ParseInLocation(layout, normalized, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// normalizeISO rewrites the accepted separator variants into the
// "YYYY-MM-DDTHH:MM:SS" shape isoLayouts expects: "-" and ":" may be
// omitted and a space may stand in for "T", so "2024-01-02 03:04:05",
// "20240102T030405" and "2024-01-02T03:04:05" all match the same layout
// list. Any trailing offset is kept as given.
func normalizeISO(s string) string {
	re := regexp.MustCompile(`^(\d{4})-?(\d{2})-?(\d{2})(?:[T ](\d{2}):?(\d{2})(?::?(\d{2}))?)?(.*)$`)

	m := re.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	out := m[1] + "-" + m[2] + "-" + m[3]
	if m[4] != "" {
		out += "T" + m[4] + ":" + m[5]
		if m[6] != "" {
			out += ":" + m[6]
		}
	}

	return out + m[7]
}

// FormatArtifact renders t (converted to UTC) as the fixed fourteen-digit
// on-artifact stamp.
func FormatArtifact(t time.Time) string {
	return t.UTC().Format(ArtifactLayout)
}

// ParseArtifact parses a fourteen-digit stamp (as produced by
// FormatArtifact) back into a UTC time. Returns ok=false if s is not
// exactly fourteen digits.
func ParseArtifact(s string) (time.Time, bool) {
	if len(s) != len(ArtifactLayout) {
		return time.Time{}, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}

	t, err := time.ParseInLocation(ArtifactLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
