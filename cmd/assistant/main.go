package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/codec"
	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/config"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/logger"
	"github.com/danielpatrickdp/case-knowledge/internal/orchestrator"
	"github.com/danielpatrickdp/case-knowledge/internal/retrieval"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
	"go.uber.org/zap"
)

// #region main
func main() {
	cfg := config.Load()

	// stdout is the conversation; structured logs only go to LOG_FILE
	zl := logger.NewFileOnly(cfg.LogLevel, cfg.LogFile)
	defer zl.Sync()

	kb, cases, err := corpus.Open(cfg.CorpusPath)
	if err != nil {
		log.Fatalf("failed to load corpus: %v", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	gen, closeGen, err := newGenerator(cfg, zl)
	if err != nil {
		log.Fatalf("failed to set up generator: %v", err)
	}
	defer closeGen()

	o := orchestrator.New(retrieval.NewRetriever(kb), gen,
		orchestrator.WithLimit(cfg.RetrievalLimit),
		orchestrator.WithStageDelay(cfg.StageDelay),
		orchestrator.WithRecorder(st),
		orchestrator.WithObserver(printStage),
		orchestrator.WithLogger(zl.Named("orchestrator")),
	)
	var inflight *orchestrator.Run
	defer func() {
		// the run must unwind before the generator and store close
		o.Close()
		if inflight != nil {
			inflight.Wait()
		}
	}()

	backend := "local templates"
	if cfg.Generator.Addr != "" {
		backend = cfg.Generator.Addr
	}
	fmt.Println("Case knowledge assistant ready.")
	fmt.Printf("  DB: %s | Articles: %d | Generator: %s\n", cfg.DBPath, kb.Len(), backend)
	fmt.Println("Type a question, an empty line to use the case context, :help for commands.")

	sess := &session{kb: kb, cases: cases}
	printCase(sess.current, sess.active())

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var done <-chan struct{}
	fmt.Print("> ")
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch sess.handle(line) {
			case actionQuit:
				return
			case actionNone:
				fmt.Print("> ")
				continue
			}
			// a new (query, case) pair supersedes whatever is still in flight
			inflight = o.Trigger(sess.query, sess.active())
			done = inflight.Done()

		case <-done:
			printResult(inflight.Wait())
			done = nil
			fmt.Print("> ")
		}
	}
}

// #endregion main

// #region generator
func newGenerator(cfg config.Config, zl *zap.Logger) (compose.Generator, func(), error) {
	if cfg.Generator.Addr == "" {
		return compose.NewTemplateGenerator(compose.WithDelay(cfg.GenerateDelay)), func() {}, nil
	}
	policy := codec.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Generator.MaxAttempts
	client, err := codec.NewClient(cfg.Generator.Addr,
		codec.WithTimeout(cfg.Generator.Timeout),
		codec.WithRetry(policy),
		codec.WithClientLogger(zl.Named("codec")),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// #endregion generator

// #region session

type action int

const (
	actionNone action = iota
	actionRun
	actionQuit
)

// session holds the REPL's current (query, case) pair.
type session struct {
	kb      *corpus.Corpus
	cases   []corpus.CaseRecord
	current int
	query   string
}

func (s *session) active() corpus.CaseRecord {
	return s.cases[s.current]
}

// handle applies one input line. A typed line replaces the query; switching to another
// case keeps the last query. Either change asks for a new run.
func (s *session) handle(line string) action {
	input := strings.TrimSpace(line)
	if input == "quit" || input == "exit" {
		return actionQuit
	}
	if strings.HasPrefix(input, ":") {
		prev := s.current
		s.current = runCommand(input, s.kb, s.cases, s.current)
		if s.current != prev {
			return actionRun
		}
		return actionNone
	}
	s.query = input
	return actionRun
}

// #endregion session

// #region commands
func runCommand(input string, kb *corpus.Corpus, cases []corpus.CaseRecord, current int) int {
	fields := strings.Fields(input)
	switch fields[0] {
	case ":help":
		fmt.Println("  :cases        list cases")
		fmt.Println("  :case N       switch to case N")
		fmt.Println("  :cite ID      show a citation")
		fmt.Println("  quit          exit")
	case ":cases":
		for i, c := range cases {
			marker := " "
			if i == current {
				marker = "*"
			}
			fmt.Printf(" %s %d  %-12s %-22s %s\n", marker, i+1, c.ID, c.Type, c.Status)
		}
	case ":case":
		if len(fields) != 2 {
			fmt.Println("usage: :case N")
			return current
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(cases) {
			fmt.Printf("no case %s (have 1-%d)\n", fields[1], len(cases))
			return current
		}
		current = n - 1
		printCase(current, cases[current])
	case ":cite":
		if len(fields) != 2 {
			fmt.Println("usage: :cite ID")
			return current
		}
		cit, err := kb.Citation(fields[1])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return current
		}
		printCitation(cit)
	default:
		fmt.Printf("unknown command %s, try :help\n", fields[0])
	}
	return current
}

// #endregion commands

// #region output
func printCase(i int, c corpus.CaseRecord) {
	fmt.Printf("\nCase %d: %s (%s, %s)\n", i+1, c.ID, c.Type, c.Status)
	fmt.Printf("  Agent: %s | %s in %s | Amount: %s\n", c.Agent, c.ClaimType, c.Location, c.Amount)
	fmt.Printf("  %s\n\n", c.Description)
}

func printStage(ev orchestrator.StageEvent) {
	switch ev.Stage {
	case orchestrator.StageRetrieving:
		fmt.Printf("  [%s] %s query: %s\n", ev.Stage, ev.Query.Kind, strings.Join(ev.Query.Keywords(), ", "))
	case orchestrator.StageGenerating:
		ids := make([]string, len(ev.Retrieved))
		for i, sa := range ev.Retrieved {
			ids[i] = fmt.Sprintf("%s(%d)", sa.Article.ID, sa.Score)
		}
		fmt.Printf("  [%s] %d articles: %s\n", ev.Stage, len(ids), strings.Join(ids, " "))
	default:
		if !ev.Stage.Terminal() {
			fmt.Printf("  [%s]\n", ev.Stage)
		}
	}
}

func printResult(snap orchestrator.Snapshot) {
	switch snap.Stage {
	case orchestrator.StageReady:
		resp := snap.Response
		fmt.Printf("\n%s\n\n", resp.Answer)
		fmt.Printf("Confidence: %.0f%%  (%s)\n", resp.Confidence*100, snap.FinishedAt.Sub(snap.StartedAt).Round(time.Millisecond))
		for _, c := range resp.Citations {
			fmt.Printf("  [%s] %s p.%d %s\n", c.ID, c.Source, c.Page, c.Paragraph)
		}
		fmt.Println()
	case orchestrator.StageError:
		fmt.Printf("\nerror: %v\n\n", snap.Err)
	}
}

func printCitation(c corpus.Citation) {
	fmt.Printf("\n%s  %s, page %d, %s\n", c.ID, c.Source, c.Page, c.Paragraph)
	fmt.Printf("  %q\n", c.Content)
	if c.HasFullContent() {
		fmt.Printf("\n%s\n", c.FullContent)
	}
	fmt.Println()
}

// #endregion output
