package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/liveboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load test.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting liveboard load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int64("eventID", cfg.EventID),
		logger.Int("users", cfg.Users),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Int("topN", cfg.TopN),
		logger.Any("verbose", cfg.Verbose))

	client := newHTTPClient(cfg.Timeout, cfg.Secret)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Pick the target event
	ev, err := selectEvent(ctx, client, cfg)
	if err != nil {
		return fmt.Errorf("event selection failed: %w", err)
	}
	cfg.EventID = ev.ID
	logger.Get().Info(ctx, "target event",
		logger.Int64("id", ev.ID),
		logger.String("name", ev.Name),
		logger.String("type", ev.ScoringType))

	// Step 3: Generate and submit
	subs := generateSubmissions(ctx, cfg, stats)
	submitResults(ctx, client, cfg, subs, stats)

	// Step 4: Read the leaderboard as the first user
	board, err := getLeaderboard(ctx, client, cfg, subs[0].UserID, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 5: Verify results
	if err := verifyResults(ctx, cfg, ev.ScoringType, subs, board); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Save submissions to file
	if err := saveSubmissions(ctx, cfg, subs); err != nil {
		logger.Get().Warn(ctx, "failed to save submissions to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, cfg *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Do(ctx, "GET", cfg.BaseURL+"/healthz", 0, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// The service returns Prometheus metrics on /healthz.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// selectEvent returns the configured event, or the first open one when none
// is configured.
func selectEvent(ctx context.Context, client *HTTPClient, cfg *Config) (EventInfo, error) {
	events, err := fetchCurrentEvents(ctx, client, cfg.BaseURL)
	if err != nil {
		return EventInfo{}, err
	}
	now := time.Now()
	for _, ev := range events {
		if cfg.EventID != 0 && ev.ID == cfg.EventID {
			return ev, nil
		}
		if cfg.EventID == 0 && !ev.StartDate.After(now) && now.Before(ev.EndDate) {
			return ev, nil
		}
	}
	if cfg.EventID != 0 {
		return EventInfo{}, fmt.Errorf("event %d is not visible", cfg.EventID)
	}
	return EventInfo{}, fmt.Errorf("no open event among %d visible", len(events))
}

// saveSubmissions writes the generated submissions as a JSON array.
func saveSubmissions(ctx context.Context, cfg *Config, subs []Submission) error {
	if len(subs) == 0 {
		return fmt.Errorf("no submissions to save")
	}

	filename := cfg.OutputFile
	if filename == "" {
		filename = "generated_submissions_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, raw, logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("closed", stats.Closed),
		logger.Int("failed", stats.Failed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
