package testevents

import "time"

// Config holds configuration for the load test
type Config struct {
	BaseURL     string        // Base URL of the service
	EventID     int64         // Event receiving the submissions
	Users       int           // Number of distinct users
	Submissions int           // Number of result submissions
	TopN        int           // Number of top entries to fetch
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Secret      string        // JWT secret shared with the service
	OutputFile  string        // Output file for submissions
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// Submission is one result delta sent by one user.
type Submission struct {
	ID     string  `json:"id"`
	UserID int64   `json:"user_id"`
	Delta  float64 `json:"delta"`
}

// EventInfo is the subset of /api/event/current the tool needs.
type EventInfo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ScoringType string    `json:"event_type"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// Entry represents a leaderboard row
type Entry struct {
	UserID   int64   `json:"user_id"`
	Result   float64 `json:"result"`
	Place    int     `json:"place"`
	UserName *string `json:"user_name"`
}

// Board is the leaderboard response
type Board struct {
	Top         []Entry `json:"top"`
	CurrentUser *Entry  `json:"current_user"`
}

// Stats holds test statistics
type Stats struct {
	Generated          int
	Submitted          int
	Successful         int
	Closed             int
	Failed             int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
