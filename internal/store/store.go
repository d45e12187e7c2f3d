package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// walJournalSizeLimit bounds the WAL file before a checkpoint is forced.
const walJournalSizeLimit = 67108864 // 64 MiB

// stmtDef names a prepared statement so prepareAll can report which one
// failed to prepare.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

// prepareAll prepares a batch of statements, returning on the first error.
func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// Store persists the artifact index backed by an embedded SQLite
// database with WAL mode. The instance is a single writer shared by the
// backup, prune, and refresh operations within one process; concurrent
// readers (status, resolver queries) use the same *sql.DB connection
// pool.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	artifactStmts artifactStatements
	runStmts      runStatements
	configStmts   configStatements
}

type artifactStatements struct {
	insert, deleteByKey, markPendingPrune, get, versions, stateAt, tree, timestamps, refCount *sql.Stmt
	allRows, allReferences                                                                   *sql.Stmt
}

type runStatements struct {
	insert, list *sql.Stmt
}

type configStatements struct {
	get, save *sql.Stmt
}

// Open opens (creating if necessary) the SQLite database at dbPath,
// applies WAL/safety pragmas, runs pending migrations, and prepares all
// statements. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening index database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareAllStatements(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	logger.Info("index database ready", "path", dbPath)

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

func (s *Store) prepareAllStatements(ctx context.Context) error {
	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.artifactStmts.insert, sqlInsertArtifact, "insertArtifact"},
		{&s.artifactStmts.deleteByKey, sqlDeleteArtifact, "deleteArtifact"},
		{&s.artifactStmts.markPendingPrune, sqlMarkPendingPrune, "markPendingPrune"},
		{&s.artifactStmts.get, sqlGetArtifact, "getArtifact"},
		{&s.artifactStmts.versions, sqlVersions, "versions"},
		{&s.artifactStmts.stateAt, sqlStateAt, "stateAt"},
		{&s.artifactStmts.tree, sqlTree, "tree"},
		{&s.artifactStmts.timestamps, sqlTimestamps, "timestamps"},
		{&s.artifactStmts.refCount, sqlRefCount, "refCount"},
		{&s.artifactStmts.allRows, sqlAllRows, "allRows"},
		{&s.artifactStmts.allReferences, sqlAllReferences, "allReferences"},
	}); err != nil {
		return err
	}

	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.runStmts.insert, sqlInsertRun, "insertRun"},
		{&s.runStmts.list, sqlListRuns, "listRuns"},
	}); err != nil {
		return err
	}

	return prepareAll(ctx, s.db, []stmtDef{
		{&s.configStmts.get, sqlGetConfigSnapshot, "getConfigSnapshot"},
		{&s.configStmts.save, sqlSaveConfigSnapshot, "saveConfigSnapshot"},
	})
}

// Checkpoint forces a WAL checkpoint, truncating the journal file. The
// executor calls this once per run, after its last phase completes, so a
// crash leaves a small WAL to replay.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.logger.Debug("running WAL checkpoint")

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the underlying connection.
func (s *Store) Close() error {
	s.logger.Info("closing index database")

	if err := s.closeStatements(); err != nil {
		s.logger.Error("error closing statements", "error", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close database: %w", err)
	}

	return nil
}

func (s *Store) closeStatements() error {
	stmts := []*sql.Stmt{
		s.artifactStmts.insert, s.artifactStmts.deleteByKey, s.artifactStmts.markPendingPrune,
		s.artifactStmts.get, s.artifactStmts.versions, s.artifactStmts.stateAt,
		s.artifactStmts.tree, s.artifactStmts.timestamps, s.artifactStmts.refCount,
		s.artifactStmts.allRows, s.artifactStmts.allReferences,
		s.runStmts.insert, s.runStmts.list,
		s.configStmts.get, s.configStmts.save,
	}

	var errs []string

	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}

		if err := stmt.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close statements: %s", strings.Join(errs, "; "))
	}

	return nil
}
