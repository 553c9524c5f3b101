package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db           *sql.DB
	busyTimeout  time.Duration
	maxOpenConns int
}

var _ Store = (*SQLiteStore)(nil)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bp_estimates (
	subject_id TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	run_id     TEXT NOT NULL,
	heart_rate REAL,
	systolic   REAL,
	diastolic  REAL,
	peaks      INTEGER NOT NULL,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS score_runs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS score_results (
	run_id           TEXT NOT NULL REFERENCES score_runs(id),
	position         INTEGER NOT NULL,
	subject_id       TEXT NOT NULL,
	sbp              REAL NOT NULL,
	dbp              REAL NOT NULL,
	bp_source        TEXT NOT NULL,
	spo2             REAL NOT NULL,
	hr               REAL NOT NULL,
	hrv              REAL NOT NULL,
	sleep_score      REAL NOT NULL,
	baseline_hr      REAL NOT NULL,
	activity         REAL NOT NULL,
	immunity         REAL NOT NULL,
	training_stress  REAL NOT NULL,
	readiness        REAL NOT NULL,
	performance      REAL NOT NULL,
	success          REAL NOT NULL,
	success_override INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_bp_estimates_position ON bp_estimates(position);
`

// NewSQLite opens the database at dsn, enables WAL and applies the schema.
func NewSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 5 * time.Second, maxOpenConns: 4}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	s.db = db
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func (s *SQLiteStore) ReplaceEstimates(ctx context.Context, runID string, estimates []model.BPEstimate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace estimates")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bp_estimates`); err != nil {
		return eris.Wrap(err, "sqlite: clear estimates")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bp_estimates
		(subject_id, position, run_id, heart_rate, systolic, diastolic, peaks, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare estimate insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, e := range estimates {
		if _, err := stmt.ExecContext(ctx,
			e.SubjectID, i, runID,
			nullable(e.HeartRate, e.Available),
			nullable(e.Systolic, e.Available),
			nullable(e.Diastolic, e.Available),
			e.Peaks, string(e.Status), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert estimate %s", e.SubjectID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit estimates")
	}
	metrics.UpdateEstimatesStored(len(estimates))
	return nil
}

const estimateColumns = `subject_id, heart_rate, systolic, diastolic, peaks, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEstimate(row rowScanner) (model.BPEstimate, error) {
	var (
		e            model.BPEstimate
		hr, sys, dia sql.NullFloat64
		status       string
	)
	if err := row.Scan(&e.SubjectID, &hr, &sys, &dia, &e.Peaks, &status); err != nil {
		return model.BPEstimate{}, err
	}
	e.Status = model.EstimateStatus(status)
	e.Available = hr.Valid && sys.Valid && dia.Valid
	e.HeartRate, e.Systolic, e.Diastolic = hr.Float64, sys.Float64, dia.Float64
	return e, nil
}

func (s *SQLiteStore) Estimates(ctx context.Context) ([]model.BPEstimate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+estimateColumns+` FROM bp_estimates ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query estimates")
	}
	defer rows.Close()

	out := []model.BPEstimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan estimate")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate estimates")
}

func (s *SQLiteStore) Estimate(ctx context.Context, subjectID string) (model.BPEstimate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+estimateColumns+` FROM bp_estimates WHERE subject_id = ?`, subjectID)
	e, err := scanEstimate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BPEstimate{}, ErrNotFound
	}
	if err != nil {
		return model.BPEstimate{}, eris.Wrapf(err, "sqlite: get estimate %s", subjectID)
	}
	return e, nil
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []model.ScoreResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO score_runs (id, created_at) VALUES (?, ?)`, runID, time.Now().UTC()); err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", runID)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO score_results
		(run_id, position, subject_id, sbp, dbp, bp_source, spo2, hr, hrv, sleep_score, baseline_hr,
		 activity, immunity, training_stress, readiness, performance, success, success_override)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare result insert")
	}
	defer stmt.Close()

	for i, r := range results {
		if _, err := stmt.ExecContext(ctx,
			runID, i, r.SubjectID, r.SBP, r.DBP, string(r.BPSource), r.SpO2, r.HR, r.HRV,
			r.SleepScore, r.BaselineHR, r.Activity, r.Immunity, r.TrainingStress,
			r.ReadinessScore, r.PerformanceScore, r.SuccessScore, r.SuccessOverride,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.SubjectID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit results")
	}
	metrics.UpdateResultsRanked(len(results))
	return nil
}

func (s *SQLiteStore) LatestResults(ctx context.Context) ([]model.ScoreResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject_id, sbp, dbp, bp_source, spo2, hr, hrv, sleep_score,
		baseline_hr, activity, immunity, training_stress, readiness, performance, success, success_override
		FROM score_results
		WHERE run_id = (SELECT id FROM score_runs ORDER BY seq DESC LIMIT 1)
		ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query results")
	}
	defer rows.Close()

	out := []model.ScoreResult{}
	for rows.Next() {
		var (
			r      model.ScoreResult
			source string
		)
		if err := rows.Scan(&r.SubjectID, &r.SBP, &r.DBP, &source, &r.SpO2, &r.HR, &r.HRV,
			&r.SleepScore, &r.BaselineHR, &r.Activity, &r.Immunity, &r.TrainingStress,
			&r.ReadinessScore, &r.PerformanceScore, &r.SuccessScore, &r.SuccessOverride); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.BPSource = model.BPSource(source)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}
