package config

import (
	"errors"
	"fmt"
	"sort"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid flat top-level keys in the config file.
// Any other top-level table key is treated as a target section name
// (see decodeTargetSections in load.go).
var knownGlobalKeys = map[string]bool{
	"log_level": true, "log_format": true, "cache_dir": true,
}

var knownGlobalKeysList = sortedKeys(knownGlobalKeys)

// knownTargetKeys are the valid keys inside a target section.
var knownTargetKeys = map[string]bool{
	"source": true, "destination": true, "compare": true, "rename_detection": true,
	"subdir": true, "track_moves": true, "server_side_copy_moves": true,
	"empty_dir_markers": true, "disable_prune": true, "min_reference_size": true,
	"keep_versions": true, "workers": true, "config_id": true,
}

var knownTargetKeysList = sortedKeys(knownTargetKeys)

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkTargetUnknownKeys validates that all keys in a target section map
// are recognized, returning an error with "did you mean?" suggestions for
// each unknown key.
func checkTargetUnknownKeys(targetMap map[string]any, name string) error {
	var errs []error

	for key := range targetMap {
		if knownTargetKeys[key] {
			continue
		}

		suggestion := closestMatch(key, knownTargetKeysList)
		if suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown key %q in target [%q] — did you mean %q?", key, name, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown key %q in target [%q]", key, name))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
