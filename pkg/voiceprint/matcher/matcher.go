package matcher

import (
	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/store"
)

// UnknownLabel is returned when there is nothing to match against.
const UnknownLabel = "S?"

// Result is the best enrollment for a query.
type Result struct {
	Label      string
	Confidence float64
}

// Match scores query against every entry by dot product, which for unit
// vectors is cosine similarity, and returns the best one. Ties go to the
// earliest entry. Entries whose length differs from the query are skipped.
func Match(query []float64, entries []store.Entry) Result {
	best := Result{Label: UnknownLabel}
	found := false
	for _, e := range entries {
		if len(e.Vector) != len(query) {
			continue
		}
		score := floats.Dot(query, e.Vector)
		if !found || score > best.Confidence {
			best = Result{Label: e.UserID, Confidence: score}
			found = true
		}
	}
	return best
}
