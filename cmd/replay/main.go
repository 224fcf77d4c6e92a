package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/config"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/replay"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to case_knowledge.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	last := flag.Int("last", 50, "number of most recent runs to replay in DB mode")
	corpusPath := flag.String("corpus", "", "corpus JSON (default: CORPUS_PATH or built-in)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/case_knowledge.db [--last N] [--corpus path]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json [--corpus path]")
		os.Exit(2)
	}

	cfg := config.Load()
	if *corpusPath == "" {
		*corpusPath = cfg.CorpusPath
	}
	kb, _, err := corpus.Open(*corpusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load corpus: %v\n", err)
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(kb, *fixturePath)
	} else {
		exitCode = runDBMode(kb, *dbPath, *last, cfg.RetrievalLimit)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

// runDBMode re-runs recorded runs against the current corpus and scoring, and reports drift.
func runDBMode(kb *corpus.Corpus, dbPath string, last, limit int) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	runs, err := st.ListRuns(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list runs: %v\n", err)
		return 2
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return 2
	}

	f, err := replay.FromRuns("db replay", limit, runs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build fixture: %v\n", err)
		return 2
	}
	return replayFixture(kb, f)
}

func runFixtureMode(kb *corpus.Corpus, path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return replayFixture(kb, f)
}

func replayFixture(kb *corpus.Corpus, f *replay.Fixture) int {
	interactions, err := f.ToInteractions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture: %v\n", err)
		return 2
	}
	results := replay.Replay(context.Background(), kb, compose.NewTemplateGenerator(), interactions, f.Config.ToReplayConfig())
	return printComparison(results, f.ExpectedResults)
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	fmt.Printf("%-12s| %-34s| %-34s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-35s+%-35s+%s\n",
		"------------", "-----------------------------------", "-----------------------------------", "------")

	total := min(len(results), len(expected))
	matches := 0
	for i := 0; i < total; i++ {
		exp, got := expected[i], results[i]
		match := "DIFF"
		if len(replay.Compare(results[i:i+1], expected[i:i+1])) == 0 {
			match = "OK"
			matches++
		}
		fmt.Printf("%-12s| %-34s| %-34s| %s\n", shortID(exp.TurnID),
			outcome(exp.Stage, exp.ArticleIDs), outcome(got.Stage, got.ArticleIDs), match)
	}

	for _, m := range replay.Compare(results, expected) {
		fmt.Printf("  %s\n", m)
	}

	s := replay.Summarize(results)
	diverge := total - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge (%d ready, %d no-information, %d error)\n",
		total, matches, diverge, s.Ready, s.NoInformation, s.Errors)

	if diverge > 0 || len(results) != len(expected) {
		return 1
	}
	return 0
}

func outcome(stage string, ids []string) string {
	return stage + " [" + strings.Join(ids, ",") + "]"
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

// #endregion output
