package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-stage
// LogStage writes a stage transition to the stage_log table.
func LogStage(db *sql.DB, entry StageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO stage_log (run_id, generation, stage, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.RunID,
		int64(entry.Generation),
		entry.Stage,
		nullIfEmpty(entry.Detail),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log stage: %w", err)
	}
	return nil
}
// #endregion log-stage

// #region detail
// Detail marshals v for StageEntry.Detail. Marshal failures yield an empty detail.
func Detail(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
// #endregion detail

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
