package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultPingTimeout bounds the connectivity check when opening the database.
const DefaultPingTimeout = 5 * time.Second

// ErrDuplicateRun is returned when a run ID has already been recorded.
var ErrDuplicateRun = errors.New("run already recorded")

const schemaDDL = `
CREATE TABLE IF NOT EXISTS qgate_runs (
	run_id           TEXT PRIMARY KEY,
	project          TEXT NOT NULL,
	event            TEXT NOT NULL,
	branch           TEXT,
	revision         TEXT,
	toolchain        TEXT,
	verdict          TEXT NOT NULL,
	exit_code        INTEGER NOT NULL,
	failed_stage     TEXT,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT NOT NULL,
	lint_score       DOUBLE PRECISION,
	tests_passed     INTEGER,
	tests_failed     INTEGER,
	tests_skipped    INTEGER,
	tests_errors     INTEGER,
	coverage_percent DOUBLE PRECISION,
	coverage_url     TEXT
);
CREATE TABLE IF NOT EXISTS qgate_stage_results (
	run_id      TEXT NOT NULL REFERENCES qgate_runs (run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	error       TEXT,
	reason      TEXT,
	PRIMARY KEY (run_id, position)
);
`

// PostgresRecorder stores runs in PostgreSQL.
type PostgresRecorder struct {
	db *sql.DB
}

// OpenPostgres connects to url, verifies connectivity and creates the tables if needed.
func OpenPostgres(ctx context.Context, url string) (*PostgresRecorder, error) {
	if url == "" {
		return nil, errors.New("database URL is empty")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &PostgresRecorder{db: db}, nil
}

// Name returns the recorder name.
func (p *PostgresRecorder) Name() string {
	return "postgres"
}

// Record inserts the run and its stage results in one transaction.
func (p *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var passed, failed, skipped, errs sql.NullInt64
	if rec.Tests != nil {
		passed = sql.NullInt64{Int64: int64(rec.Tests.Passed), Valid: true}
		failed = sql.NullInt64{Int64: int64(rec.Tests.Failed), Valid: true}
		skipped = sql.NullInt64{Int64: int64(rec.Tests.Skipped), Valid: true}
		errs = sql.NullInt64{Int64: int64(rec.Tests.Errors), Valid: true}
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO qgate_runs (
			run_id,
			project,
			event,
			branch,
			revision,
			toolchain,
			verdict,
			exit_code,
			failed_stage,
			started_at,
			finished_at,
			duration_ms,
			lint_score,
			tests_passed,
			tests_failed,
			tests_skipped,
			tests_errors,
			coverage_percent,
			coverage_url
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rec.RunID,
		rec.Project,
		rec.Event,
		nullString(rec.Branch),
		nullString(rec.Revision),
		nullString(rec.Toolchain),
		rec.Verdict,
		rec.ExitCode,
		nullString(rec.FailedStage),
		rec.StartedAt,
		rec.FinishedAt,
		rec.DurationMS,
		nullFloat(rec.LintScore),
		passed,
		failed,
		skipped,
		errs,
		nullFloat(rec.Coverage),
		nullString(rec.CoverageURL),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, rec.RunID)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	for i, s := range rec.Stages {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO qgate_stage_results (
				run_id,
				position,
				name,
				status,
				exit_code,
				duration_ms,
				error,
				reason
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rec.RunID,
			i,
			s.Name,
			s.Status,
			s.ExitCode,
			s.DurationMS,
			nullString(s.Error),
			nullString(s.Reason),
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns the newest runs recorded for a project, newest first.
// A limit of zero or less returns every run.
func (p *PostgresRecorder) Recent(ctx context.Context, project string, limit int) ([]Record, error) {
	rows, err := p.db.QueryContext(
		ctx,
		`SELECT run_id, project, event, branch, revision, verdict, exit_code, failed_stage,
			started_at, finished_at, duration_ms
		FROM qgate_runs
		WHERE project = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		project,
		sql.NullInt64{Int64: int64(limit), Valid: limit > 0},
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var branch, revision, failedStage sql.NullString
		if err := rows.Scan(
			&rec.RunID,
			&rec.Project,
			&rec.Event,
			&branch,
			&revision,
			&rec.Verdict,
			&rec.ExitCode,
			&failedStage,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Branch = branch.String
		rec.Revision = revision.String
		rec.FailedStage = failedStage.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresRecorder) Close() error {
	return p.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
