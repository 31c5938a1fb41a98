package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/liveboard/internal/adapters/identity"
)

// tokenHeader carries the access token.
const tokenHeader = "accessToken"

// HTTPClient wraps http.Client with a token per user
type HTTPClient struct {
	client *http.Client
	signer *identity.JWT

	mu     sync.Mutex
	tokens map[int64]string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration, secret string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		signer: identity.NewJWT(secret, time.Hour),
		tokens: make(map[int64]string),
	}
}

func (c *HTTPClient) token(userID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[userID]; ok {
		return t, nil
	}
	t, _, err := c.signer.Sign(userID)
	if err != nil {
		return "", err
	}
	c.tokens[userID] = t
	return t, nil
}

// Do sends a request, authenticated as userID when it is positive.
func (c *HTTPClient) Do(ctx context.Context, method, url string, userID int64, body any) (*http.Response, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		t, err := c.token(userID)
		if err != nil {
			return nil, err
		}
		req.Header.Set(tokenHeader, t)
	}
	return c.client.Do(req)
}

// getJSON decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, userID int64, v any) error {
	resp, err := c.Do(ctx, http.MethodGet, url, userID, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// fetchCurrentEvents lists the events the service shows right now.
func fetchCurrentEvents(ctx context.Context, client *HTTPClient, baseURL string) ([]EventInfo, error) {
	var events []EventInfo
	if err := client.getJSON(ctx, baseURL+"/api/event/current", 0, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// getLeaderboard retrieves the top N rows as the given user.
func getLeaderboard(ctx context.Context, client *HTTPClient, cfg *Config, asUser int64, stats *Stats) (Board, error) {
	log.Printf("🥇 Getting top %d leaderboard entries...", cfg.TopN)

	url := fmt.Sprintf("%s/api/event/leaderboard?event_id=%d&limit=%d", cfg.BaseURL, cfg.EventID, cfg.TopN)
	var board Board
	if err := client.getJSON(ctx, url, asUser, &board); err != nil {
		return Board{}, err
	}
	stats.LeaderboardEntries = len(board.Top)
	log.Printf("✅ Retrieved %d leaderboard entries", len(board.Top))
	return board, nil
}

// submitResults sends submissions concurrently using a worker pool.
func submitResults(ctx context.Context, client *HTTPClient, cfg *Config, subs []Submission, stats *Stats) {
	log.Printf("📤 Submitting %d results with %d workers...", len(subs), cfg.Workers)

	url := cfg.BaseURL + "/api/event/result?event_id=" + strconv.FormatInt(cfg.EventID, 10)

	var successful, closed, failed, submitted atomic.Int64

	ch := make(chan Submission, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				switch submitSingle(ctx, client, url, s) {
				case outcomeSuccess:
					successful.Add(1)
				case outcomeClosed:
					closed.Add(1)
				default:
					failed.Add(1)
					if cfg.Verbose {
						log.Printf("⚠️  Submission %s of user %d failed", s.ID, s.UserID)
					}
				}
				submitted.Add(1)
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Successful = int(successful.Load())
	stats.Closed = int(closed.Load())
	stats.Failed = int(failed.Load())

	log.Printf(`✅ Submission completed:
   Successful: %d
   Closed: %d
   Failed: %d
`, stats.Successful, stats.Closed, stats.Failed)
}

// submitSingle posts one delta and classifies the outcome.
func submitSingle(ctx context.Context, client *HTTPClient, url string, s Submission) string {
	resp, err := client.Do(ctx, http.MethodPost, url, s.UserID, s.Delta)
	if err != nil {
		return outcomeFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case StatusOK:
		return outcomeSuccess
	case StatusConflict:
		return outcomeClosed
	default:
		return outcomeFailed
	}
}
