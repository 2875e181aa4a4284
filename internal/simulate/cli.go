package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Arena Tournament Simulator
==========================

Registers teams against a running arena server, verifies their entries,
lets every team judge concurrently and checks the final leaderboard
against the votes the server accepted.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -teams int
        Number of teams to register (default 12)
  -submissions int
        Submissions uploaded per team (default 3)
  -votes int
        Votes to attempt across all judges (default 500)
  -workers int
        Number of concurrent judges (default CPU cores * 2)
  -churn float
        Chance per vote that a team swaps its verified entry (default 0.05)
  -max-score int
        Largest score difference a judge hands out (default 3)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for accepted comparisons (default: comparisons_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: simulate_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run ./cmd/simulate

  # A larger field with heavy entry churn
  go run ./cmd/simulate -teams 50 -votes 5000 -churn 0.2
`)
}
