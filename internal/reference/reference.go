// Package reference implements the JSON payload codec for reference
// artifacts: a rename recorded without copying data, pointing at another
// real path.
package reference

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// CurrentVersion is the payload version Marshal always writes.
const CurrentVersion = 2

// payload is the version-2 wire format: {"ver":2,"rel":"..."}.
type payload struct {
	Ver int    `json:"ver"`
	Rel string `json:"rel"`
}

// Marshal encodes rel — the referent's real path, relative to the
// reference artifact's parent directory — as a version-2 JSON payload.
func Marshal(rel string) []byte {
	p := payload{Ver: CurrentVersion, Rel: rel}

	// json.Marshal on this fixed, always-valid struct cannot fail.
	b, _ := json.Marshal(p)

	return b
}

// Parse decodes a reference artifact's payload. It accepts both the
// current version-2 JSON object and legacy version-1 payloads, which are
// a bare relative path with no JSON envelope at all (trimmed of
// surrounding whitespace/newlines). legacy reports which form was read.
func Parse(data []byte) (rel string, legacy bool, err error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", false, fmt.Errorf("reference: empty payload")
	}

	if trimmed[0] == '{' {
		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			return "", false, fmt.Errorf("reference: parsing payload: %w", err)
		}

		if p.Rel == "" {
			return "", false, fmt.Errorf("reference: payload missing rel field")
		}

		return p.Rel, false, nil
	}

	// Version 1: the payload is the bare relative path, nothing else.
	return trimmed, true, nil
}

// Rel computes the rel payload Marshal expects: referentRealPath
// expressed relative to referenceRealPath's parent directory, so the
// pair can be moved together (e.g. to a different destination root)
// without invalidating the reference.
func Rel(referenceRealPath, referentRealPath string) string {
	base := path.Clean(path.Dir(referenceRealPath))
	target := path.Clean(referentRealPath)

	baseParts := splitClean(base)
	targetParts := splitClean(target)

	i := 0
	for i < len(baseParts) && i < len(targetParts) && baseParts[i] == targetParts[i] {
		i++
	}

	var segments []string
	for range baseParts[i:] {
		segments = append(segments, "..")
	}

	segments = append(segments, targetParts[i:]...)

	if len(segments) == 0 {
		return "."
	}

	return strings.Join(segments, "/")
}

func splitClean(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}

	return strings.Split(p, "/")
}

// Resolve computes the referent's real path given the reference
// artifact's own real path and the rel payload it carries. Resolution is
// purely lexical — path.Join against the reference's parent directory —
// and tolerates ".." segments in rel without consulting the filesystem or
// the index.
func Resolve(referenceRealPath, rel string) string {
	parent := path.Dir(referenceRealPath)

	return path.Join(parent, rel)
}
