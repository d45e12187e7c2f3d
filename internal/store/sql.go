package store

// Column list shared by every query that returns full artifact rows.
const sqlArtifactColumns = `
	apparent_path, real_path, timestamp, kind, size, mod_time, hash,
	referent_real_path, dst_metadata_present, pending_prune
`

const sqlInsertArtifact = `
INSERT INTO artifacts (` + sqlArtifactColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (apparent_path, timestamp) DO UPDATE SET
	real_path = excluded.real_path,
	kind = excluded.kind,
	size = excluded.size,
	mod_time = excluded.mod_time,
	hash = excluded.hash,
	referent_real_path = excluded.referent_real_path,
	dst_metadata_present = excluded.dst_metadata_present,
	pending_prune = excluded.pending_prune
`

const sqlDeleteArtifact = `
DELETE FROM artifacts WHERE real_path = ?
`

const sqlMarkPendingPrune = `
UPDATE artifacts SET pending_prune = 1 WHERE real_path = ?
`

const sqlGetArtifact = `
SELECT ` + sqlArtifactColumns + `
FROM artifacts
WHERE real_path = ?
`

// sqlVersions returns every row for an apparent path, most recent first.
const sqlVersions = `
SELECT ` + sqlArtifactColumns + `
FROM artifacts
WHERE apparent_path = ?
ORDER BY timestamp DESC
`

// sqlStateAt returns, for every apparent path with a row at or before the
// cutoff, the most recent such row — i.e. the logical state of the whole
// tree at that instant. When subpath is non-empty the caller filters rows
// in Go (SQLite has no clean parameterized prefix-or-exact match here
// that also handles the root "" case).
const sqlStateAt = `
SELECT ` + sqlArtifactColumns + `
FROM artifacts a
WHERE a.timestamp = (
	SELECT MAX(b.timestamp) FROM artifacts b
	WHERE b.apparent_path = a.apparent_path AND b.timestamp <= ?
)
AND a.timestamp <= ?
`

// sqlTree is identical in shape to sqlStateAt; kept separate so the two
// call sites (point-in-time resolver vs. directory listing) can diverge
// without entangling unrelated query plans.
const sqlTree = sqlStateAt

const sqlTimestamps = `
SELECT DISTINCT timestamp FROM artifacts ORDER BY timestamp ASC
`

const sqlRefCount = `
SELECT COUNT(*) FROM artifacts WHERE referent_real_path = ?
`

// sqlAllRows returns every row in the index, ordered by apparent path
// then timestamp ascending — the full version history prune needs to
// compute anchors and candidates per path.
const sqlAllRows = `
SELECT ` + sqlArtifactColumns + `
FROM artifacts
ORDER BY apparent_path ASC, timestamp ASC
`

// sqlAllReferences returns every REFERENCE row in the index, used to
// build the prune planner's protection graph without pulling the full
// table when only the reference edges are needed.
const sqlAllReferences = `
SELECT ` + sqlArtifactColumns + `
FROM artifacts
WHERE kind = 'REFERENCE'
`

const sqlInsertRun = `
INSERT INTO runs (timestamp, host_id, config_id, counts_by_kind, elapsed_millis)
VALUES (?, ?, ?, ?, ?)
`

const sqlListRuns = `
SELECT timestamp, host_id, config_id, counts_by_kind, elapsed_millis
FROM runs
ORDER BY timestamp DESC
`

const sqlGetConfigSnapshot = `
SELECT fingerprint, updated_unix FROM config_snapshot WHERE config_id = ?
`

const sqlSaveConfigSnapshot = `
INSERT INTO config_snapshot (config_id, fingerprint, updated_unix)
VALUES (?, ?, ?)
ON CONFLICT (config_id) DO UPDATE SET
	fingerprint = excluded.fingerprint,
	updated_unix = excluded.updated_unix
`
