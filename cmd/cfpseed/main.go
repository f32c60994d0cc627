// Command cfpseed loads a YAML scenario into a running cfpboard and checks
// the leaderboard against a local recomputation. It exits 1 on any mismatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/cfpboard/internal/seed"
	"github.com/okian/cfpboard/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cfpseed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		baseURL  = fs.String("url", "http://localhost:9080", "base URL of the service")
		file     = fs.String("scenario", "scenario.yaml", "scenario file, - for stdin")
		workers  = fs.Int("workers", seed.DefaultWorkers, "concurrent requests")
		timeout  = fs.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		deadline = fs.Duration("deadline", defaultRunTimeout, "limit for the whole run")
		format   = fs.String("log-format", "text", "text or json")
		verbose  = fs.Bool("verbose", false, "debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: cfpseed [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(logger.WithFormat(*format), logger.WithOutput(stderr)); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return 2
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	sc, err := readScenario(*file)
	if err != nil {
		fmt.Fprintln(stderr, "cfpseed:", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *deadline)
	defer cancel()

	rep, err := seed.Run(ctx, seed.Config{BaseURL: *baseURL, Timeout: *timeout, Workers: *workers}, sc)
	if rep != nil {
		fmt.Fprintf(stdout, "accounts=%d votes=%d submissions=%d reviews=%d entries=%d mismatches=%d duration=%s\n",
			rep.Accounts, rep.Votes, rep.Submissions, rep.Reviews, rep.Entries, len(rep.Mismatches), rep.Duration.Round(time.Millisecond))
		for _, m := range rep.Mismatches {
			fmt.Fprintln(stdout, "MISMATCH", m.String())
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "cfpseed:", err)
		return 1
	}
	return 0
}

func readScenario(path string) (*seed.Scenario, error) {
	if path == "-" {
		return seed.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Parse(f)
}
