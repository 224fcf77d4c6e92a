package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/logging"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	generation    INTEGER NOT NULL,
	case_id       TEXT,
	case_json     TEXT,
	query         TEXT,
	query_kind    TEXT NOT NULL,
	article_ids   TEXT NOT NULL,
	citation_ids  TEXT NOT NULL,
	answer        TEXT,
	confidence    REAL NOT NULL,
	final_stage   TEXT NOT NULL,
	error         TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	generation    INTEGER NOT NULL,
	stage         TEXT NOT NULL,
	detail        TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_log_run ON stage_log(run_id);
`
// #endregion schema

// timeFormat is fixed-width so finished_at sorts correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store persists run history in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// runs finish on their own goroutines; serialize writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region record-run
// RecordRun inserts a terminal run. A missing RunID is filled with a fresh UUID,
// which is returned.
func (s *Store) RecordRun(rec RunRecord) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}

	articleJSON, err := json.Marshal(nonNil(rec.ArticleIDs))
	if err != nil {
		return "", fmt.Errorf("marshal article ids: %w", err)
	}
	citationJSON, err := json.Marshal(nonNil(rec.CitationIDs))
	if err != nil {
		return "", fmt.Errorf("marshal citation ids: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, generation, case_id, case_json, query, query_kind, article_ids,
		                   citation_ids, answer, confidence, final_stage, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, int64(rec.Generation), nullIfEmpty(rec.CaseID), nullIfEmpty(rec.CaseJSON),
		nullIfEmpty(rec.Query), rec.QueryKind, string(articleJSON), string(citationJSON),
		nullIfEmpty(rec.Answer), rec.Confidence, rec.FinalStage, nullIfEmpty(rec.Error),
		rec.StartedAt.UTC().Format(timeFormat), rec.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return rec.RunID, nil
}
// #endregion record-run

// #region log-stage
// LogStage appends a stage transition for a run.
func (s *Store) LogStage(entry logging.StageEntry) error {
	return logging.LogStage(s.db, entry)
}
// #endregion log-stage

// #region get-run
const runColumns = `run_id, generation, case_id, case_json, query, query_kind, article_ids,
	citation_ids, answer, confidence, final_stage, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var gen int64
	var caseID, caseJSON, query, answer, errStr sql.NullString
	var articleJSON, citationJSON, startedStr, finishedStr string

	err := row.Scan(&rec.RunID, &gen, &caseID, &caseJSON, &query, &rec.QueryKind, &articleJSON,
		&citationJSON, &answer, &rec.Confidence, &rec.FinalStage, &errStr, &startedStr, &finishedStr)
	if err != nil {
		return RunRecord{}, err
	}

	rec.Generation = uint64(gen)
	rec.CaseID = caseID.String
	rec.CaseJSON = caseJSON.String
	rec.Query = query.String
	rec.Answer = answer.String
	rec.Error = errStr.String
	if err := json.Unmarshal([]byte(articleJSON), &rec.ArticleIDs); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal article ids: %w", err)
	}
	if err := json.Unmarshal([]byte(citationJSON), &rec.CitationIDs); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal citation ids: %w", err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr)
	return rec, nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-runs

// #region list-stages
// ListStages returns the stage transitions of a run in the order they were logged.
func (s *Store) ListStages(runID string) ([]logging.StageEntry, error) {
	rows, err := s.db.Query(
		`SELECT run_id, generation, stage, detail, created_at FROM stage_log
		 WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var entries []logging.StageEntry
	for rows.Next() {
		var e logging.StageEntry
		var gen int64
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &gen, &e.Stage, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Generation = uint64(gen)
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion list-stages

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
// #endregion helpers
