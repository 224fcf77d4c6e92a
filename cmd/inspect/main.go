package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/case-knowledge/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to case_knowledge.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail with its stage log")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/case_knowledge.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string   `json:"run_id"`
	Generation uint64   `json:"generation"`
	CaseID     string   `json:"case_id"`
	QueryKind  string   `json:"query_kind"`
	Query      string   `json:"query,omitempty"`
	Stage      string   `json:"stage"`
	ArticleIDs []string `json:"article_ids"`
	Confidence float64  `json:"confidence"`
	DurationMS int64    `json:"duration_ms"`
	FinishedAt string   `json:"finished_at"`
}

func toListRow(r store.RunRecord) listRow {
	return listRow{
		RunID:      r.RunID,
		Generation: r.Generation,
		CaseID:     r.CaseID,
		QueryKind:  r.QueryKind,
		Query:      r.Query,
		Stage:      r.FinalStage,
		ArticleIDs: r.ArticleIDs,
		Confidence: r.Confidence,
		DurationMS: r.Duration().Milliseconds(),
		FinishedAt: r.FinishedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns newest first, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = toListRow(r)
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-12s  %-9s  %-6s  %5s  %7s  %-20s  %s\n",
		"Run", "Case", "Query", "Stage", "Conf", "Took", "Time", "Articles")
	fmt.Printf("%-10s+-%-12s+-%-9s+-%-6s+-%5s+-%7s+-%-20s+-%s\n",
		"----------", "------------", "---------", "------", "-----", "-------", "--------------------", "--------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-12s  %-9s  %-6s  %4.0f%%  %5dms  %-20s  %s\n",
			shortID(r.RunID), r.CaseID, r.QueryKind, r.Stage, r.Confidence*100, r.DurationMS, r.FinishedAt,
			strings.Join(r.ArticleIDs, ","))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	listRow
	Answer      string        `json:"answer,omitempty"`
	CitationIDs []string      `json:"citation_ids"`
	Error       string        `json:"error,omitempty"`
	StartedAt   string        `json:"started_at"`
	Stages      []stageDetail `json:"stages"`
}

type stageDetail struct {
	Stage     string          `json:"stage"`
	CreatedAt string          `json:"created_at"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	r, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	entries, err := st.ListStages(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		listRow:     toListRow(r),
		Answer:      r.Answer,
		CitationIDs: r.CitationIDs,
		Error:       r.Error,
		StartedAt:   r.StartedAt.Format("2006-01-02T15:04:05Z"),
	}
	for _, e := range entries {
		sd := stageDetail{Stage: e.Stage, CreatedAt: e.CreatedAt.Format("15:04:05.000")}
		if e.Detail != "" {
			sd.Detail = json.RawMessage(e.Detail)
		}
		out.Stages = append(out.Stages, sd)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s (generation %d)\n", out.RunID, out.Generation)
	fmt.Printf("Case:       %s\n", out.CaseID)
	fmt.Printf("Query:      %s %q\n", out.QueryKind, out.Query)
	fmt.Printf("Started:    %s\n", out.StartedAt)
	fmt.Printf("Finished:   %s (%dms)\n", out.FinishedAt, out.DurationMS)
	fmt.Printf("Stage:      %s\n", out.Stage)
	if out.Error != "" {
		fmt.Printf("Error:      %s\n", out.Error)
	} else {
		fmt.Printf("Confidence: %.0f%%\n", out.Confidence*100)
		fmt.Printf("Articles:   %s\n", strings.Join(out.ArticleIDs, ", "))
		fmt.Printf("Citations:  %s\n", strings.Join(out.CitationIDs, ", "))
		fmt.Printf("\n%s\n", out.Answer)
	}

	fmt.Printf("\nStage log:\n")
	for _, s := range out.Stages {
		fmt.Printf("  %s  %-11s %s\n", s.CreatedAt, s.Stage, string(s.Detail))
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
