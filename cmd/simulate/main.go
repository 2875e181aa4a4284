package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/arena/internal/simulate"
)

// Default configuration constants.
const (
	defaultTeams       = 12
	defaultSubmissions = 3
	defaultVotes       = 500
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultChurn       = 0.05
	defaultMaxScore    = 3
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		teams       = flag.Int("teams", defaultTeams, "Number of teams to register")
		submissions = flag.Int("submissions", defaultSubmissions, "Submissions uploaded per team")
		votes       = flag.Int("votes", defaultVotes, "Votes to attempt across all judges")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent judges")
		churn       = flag.Float64("churn", defaultChurn, "Chance per vote that a team swaps its verified entry")
		maxScore    = flag.Int("max-score", defaultMaxScore, "Largest score difference a judge hands out")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Output file for accepted comparisons (default: comparisons_TIMESTAMP.json)")
		logFile     = flag.String("log", "", "Log file for simulation output (default: simulate_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	if *outputFile == "" {
		*outputFile = "comparisons_" + time.Now().Format("20060102_150405") + ".json"
	}

	cfg := &simulate.Config{
		BaseURL:     *baseURL,
		Teams:       *teams,
		Submissions: *submissions,
		Votes:       *votes,
		Workers:     *workers,
		Churn:       *churn,
		MaxScore:    *maxScore,
		Timeout:     *timeout,
		OutputFile:  *outputFile,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
