package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE stage_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		generation INTEGER NOT NULL,
		stage      TEXT NOT NULL,
		detail     TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-stage-tests
func TestLogStage_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := StageEntry{
		RunID:      "run-1",
		Generation: 7,
		Stage:      "RETRIEVING",
		Detail:     Detail(RetrievalDetail{QueryKind: "raw", Keywords: []string{"flood"}, ArticleIDs: []string{"POL-FL-2024"}, Scores: []int{3}}),
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogStage(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var runID, stage, detail string
	var gen int64
	db.QueryRow("SELECT run_id, generation, stage, detail FROM stage_log").Scan(&runID, &gen, &stage, &detail)
	if runID != "run-1" {
		t.Errorf("expected run_id 'run-1', got %q", runID)
	}
	if gen != 7 {
		t.Errorf("expected generation 7, got %d", gen)
	}
	if stage != "RETRIEVING" {
		t.Errorf("expected stage 'RETRIEVING', got %q", stage)
	}
	if detail != `{"query_kind":"raw","keywords":["flood"],"article_ids":["POL-FL-2024"],"scores":[3]}` {
		t.Errorf("unexpected detail %s", detail)
	}
}

func TestLogStage_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogStage(db, StageEntry{RunID: "run-2", Stage: "EXTRACTING"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM stage_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogStage_EmptyDetailIsNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogStage(db, StageEntry{RunID: "run-3", Stage: "GENERATING"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var detail sql.NullString
	db.QueryRow("SELECT detail FROM stage_log").Scan(&detail)
	if detail.Valid {
		t.Error("expected NULL detail for empty string")
	}
}

func TestLogStage_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogStage(db, StageEntry{RunID: "run-4", Stage: "READY"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-stage-tests

// #region detail-tests
func TestDetail_Unmarshalable(t *testing.T) {
	if got := Detail(make(chan int)); got != "" {
		t.Errorf("expected empty detail, got %q", got)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("x") != "x" {
		t.Error("expected passthrough for non-empty string")
	}
}

// #endregion detail-tests
