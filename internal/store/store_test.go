package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/logging"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, finished time.Time) RunRecord {
	return RunRecord{
		RunID:       id,
		Generation:  2,
		CaseID:      "CLM-9901-X",
		CaseJSON:    `{"id":"CLM-9901-X"}`,
		Query:       "flood",
		QueryKind:   "raw",
		ArticleIDs:  []string{"POL-FL-2024"},
		CitationIDs: []string{"CIT-001", "CIT-002"},
		Answer:      "According to ...",
		Confidence:  0.95,
		FinalStage:  "READY",
		StartedAt:   finished.Add(-3 * time.Second),
		FinishedAt:  finished,
	}
}

func TestRecordAndGetRun(t *testing.T) {
	s := tempDB(t)
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.RecordRun(sampleRun("run-1", finished))
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("expected run-1, got %s", id)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Generation != 2 {
		t.Errorf("expected generation 2, got %d", got.Generation)
	}
	if len(got.CitationIDs) != 2 || got.CitationIDs[1] != "CIT-002" {
		t.Errorf("unexpected citation ids %v", got.CitationIDs)
	}
	if got.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", got.Confidence)
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("expected finished %v, got %v", finished, got.FinishedAt)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", got.Duration())
	}
}

func TestRecordRun_AssignsID(t *testing.T) {
	s := tempDB(t)
	rec := sampleRun("", time.Now().UTC())
	rec.ArticleIDs = nil
	rec.CitationIDs = nil

	id, err := s.RecordRun(rec)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected uuid, got %q", id)
	}
	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.ArticleIDs == nil || len(got.ArticleIDs) != 0 {
		t.Errorf("expected empty non-nil article ids, got %#v", got.ArticleIDs)
	}
}

func TestRecordRun_ErrorRun(t *testing.T) {
	s := tempDB(t)
	rec := RunRecord{RunID: "run-err", QueryKind: "extracted", FinalStage: "ERROR", Error: "generating: boom"}
	if _, err := s.RecordRun(rec); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := s.GetRun("run-err")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Error != "generating: boom" || got.Answer != "" {
		t.Errorf("unexpected run %+v", got)
	}
}

func TestRecordRun_DuplicateID(t *testing.T) {
	s := tempDB(t)
	rec := sampleRun("dup", time.Now().UTC())
	if _, err := s.RecordRun(rec); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if _, err := s.RecordRun(rec); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if _, err := s.RecordRun(sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Errorf("expected [c b], got [%s %s]", runs[0].RunID, runs[1].RunID)
	}
}

func TestLogStageAndListStages(t *testing.T) {
	s := tempDB(t)
	for _, stage := range []string{"EXTRACTING", "RETRIEVING", "GENERATING", "READY"} {
		if err := s.LogStage(logging.StageEntry{RunID: "run-1", Generation: 1, Stage: stage}); err != nil {
			t.Fatalf("LogStage %s: %v", stage, err)
		}
	}
	if err := s.LogStage(logging.StageEntry{RunID: "other", Generation: 2, Stage: "EXTRACTING"}); err != nil {
		t.Fatalf("LogStage: %v", err)
	}

	entries, err := s.ListStages("run-1")
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Stage != "EXTRACTING" || entries[3].Stage != "READY" {
		t.Errorf("unexpected order: %s .. %s", entries[0].Stage, entries[3].Stage)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}
