package testevents

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
)

// verifyResults checks the leaderboard against the totals the tool sent.
// Totals only match exactly when nobody else wrote to the event.
func verifyResults(_ context.Context, cfg *Config, scoringType string, subs []Submission, board Board) error {
	log.Println("🔍 Verifying results...")

	if len(board.Top) == 0 {
		return fmt.Errorf("empty leaderboard")
	}
	lowerBetter := scoringType == "time"

	if err := verifyOrdering(board.Top, lowerBetter); err != nil {
		return err
	}

	expected := rankExpected(expectedTotals(subs), lowerBetter)
	if err := verifyTotals(expected, board.Top); err != nil {
		log.Printf("⚠️  Leaderboard consistency warning: %v", err)
	} else {
		log.Println("✅ Leaderboard totals verified")
	}

	displayTopPerformers(expected, board.Top, cfg.Verbose)
	log.Println("✅ Result verification completed")
	return nil
}

// verifyOrdering checks that places are 1..n and results follow the direction.
func verifyOrdering(top []Entry, lowerBetter bool) error {
	for i, e := range top {
		if e.Place != i+1 {
			return fmt.Errorf("entry %d has place %d", i, e.Place)
		}
		if i == 0 {
			continue
		}
		prev := top[i-1].Result
		if (lowerBetter && e.Result < prev) || (!lowerBetter && e.Result > prev) {
			return fmt.Errorf("leaderboard not properly sorted at place %d", e.Place)
		}
	}
	return nil
}

// rankExpected orders the locally summed totals the way the service ranks.
func rankExpected(totals map[int64]float64, lowerBetter bool) []Entry {
	out := make([]Entry, 0, len(totals))
	for uid, total := range totals {
		out = append(out, Entry{UserID: uid, Result: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Result != out[j].Result {
			if lowerBetter {
				return out[i].Result < out[j].Result
			}
			return out[i].Result > out[j].Result
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Place = i + 1
	}
	return out
}

// verifyTotals compares every returned row with the expected total of its user.
func verifyTotals(expected, top []Entry) error {
	byUser := make(map[int64]float64, len(expected))
	for _, e := range expected {
		byUser[e.UserID] = e.Result
	}
	for _, e := range top {
		want, ok := byUser[e.UserID]
		if !ok {
			return fmt.Errorf("user %d was not part of this run", e.UserID)
		}
		if math.Abs(want-e.Result) > resultEpsilon {
			return fmt.Errorf("user %d total %.3f, expected %.3f", e.UserID, e.Result, want)
		}
	}
	return nil
}

// displayTopPerformers shows the expected and the served top rows.
func displayTopPerformers(expected, top []Entry, verbose bool) {
	n := min(10, len(expected))
	log.Printf("🏆 Top %d expected:", n)
	for _, e := range expected[:n] {
		log.Printf("   %d. user %d - %.3f", e.Place, e.UserID, e.Result)
	}

	n = min(10, len(top))
	log.Printf("🥇 Top %d served:", n)
	for _, e := range top[:n] {
		name := "-"
		if e.UserName != nil {
			name = *e.UserName
		}
		log.Printf("   %d. user %d (%s) - %.3f", e.Place, e.UserID, name, e.Result)
	}

	if verbose && len(expected) > 0 {
		sum := 0.0
		for _, e := range expected {
			sum += e.Result
		}
		log.Printf(`📊 Result statistics:
   Average: %.3f
   First: %.3f
   Last: %.3f
`, sum/float64(len(expected)), expected[0].Result, expected[len(expected)-1].Result)
	}
}
