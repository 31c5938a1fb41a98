package testevents

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/liveboard/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileCount       = 4
)

// Delta ranges per performer profile.
const (
	lowPerformerMin     = 0.1
	lowPerformerRange   = 2.9
	avgPerformerMin     = 3.0
	avgPerformerRange   = 4.0
	highPerformerMin    = 7.0
	highPerformerRange  = 2.0
	elitePerformerMin   = 9.0
	elitePerformerRange = 1.0
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n).
func getRandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSubmissions spreads cfg.Submissions across cfg.Users users. Each
// user keeps one performer profile so the standings have a clear shape.
func generateSubmissions(ctx context.Context, cfg *Config, stats *Stats) []Submission {
	logger.Get().Info(ctx, "generating submissions",
		logger.Int("submissions", cfg.Submissions),
		logger.Int("users", cfg.Users))

	profiles := make(map[int64]int, cfg.Users)
	out := make([]Submission, cfg.Submissions)
	for i := range out {
		uid := int64(getRandomInt(cfg.Users) + 1)
		p, ok := profiles[uid]
		if !ok {
			p = getRandomInt(profileCount)
			profiles[uid] = p
		}
		out[i] = Submission{ID: uuid.NewString(), UserID: uid, Delta: generateDelta(p)}
	}
	stats.Generated = len(out)
	return out
}

func generateDelta(profile int) float64 {
	r := getRandomFloat()
	switch profile {
	case 0:
		return lowPerformerMin + r*lowPerformerRange
	case 1:
		return avgPerformerMin + r*avgPerformerRange
	case 2:
		return highPerformerMin + r*highPerformerRange
	default:
		return elitePerformerMin + r*elitePerformerRange
	}
}

// expectedTotals sums the deltas per user.
func expectedTotals(subs []Submission) map[int64]float64 {
	out := make(map[int64]float64)
	for _, s := range subs {
		out[s.UserID] += s.Delta
	}
	return out
}
