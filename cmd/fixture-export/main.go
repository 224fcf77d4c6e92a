package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/case-knowledge/internal/config"
	"github.com/danielpatrickdp/case-knowledge/internal/replay"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to case_knowledge.db")
	last := flag.Int("last", 10, "number of most recent runs to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	description := flag.String("description", "", "fixture description")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N] [--description text]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath, *description); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath string, last int, outPath, description string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(last)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs found in %s", dbPath)
	}

	if description == "" {
		description = fmt.Sprintf("Exported from %s (last %d runs)", dbPath, len(runs))
	}
	f, err := replay.FromRuns(description, config.Load().RetrievalLimit, runs)
	if err != nil {
		return err
	}
	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}

	fmt.Printf("Exported %d runs (%d cases) to %s\n", len(f.Interactions), len(f.Cases), outPath)
	return nil
}

// #endregion export
