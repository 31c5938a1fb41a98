package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/liveboard/internal/testevents"
)

// Default configuration constants.
const (
	defaultUsers       = 1000
	defaultSubmissions = 10000
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		eventID     = flag.Int64("event", 0, "Event id to load (default: first open event)")
		users       = flag.Int("users", defaultUsers, "Number of distinct users")
		submissions = flag.Int("submissions", defaultSubmissions, "Number of result submissions")
		topN        = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		secret      = flag.String("secret", os.Getenv("LIVEBOARD_JWT_SECRET"), "JWT secret shared with the service")
		outputFile  = flag.String("output", "", "Output file for submissions (default: generated_submissions_TIMESTAMP.json)")
		logFile     = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}
	if *secret == "" || *users < 1 || *submissions < 1 {
		os.Stderr.WriteString("secret, users and submissions are required; see -help\n")
		os.Exit(2)
	}

	if err := testevents.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &testevents.Config{
		BaseURL:     *baseURL,
		EventID:     *eventID,
		Users:       *users,
		Submissions: *submissions,
		TopN:        *topN,
		Workers:     *workers,
		Timeout:     *timeout,
		Secret:      *secret,
		OutputFile:  *outputFile,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if err := testevents.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}
