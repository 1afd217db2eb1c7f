// Package scoring computes how well two users are likely to get along, and
// how well a finished chat actually went.
package scoring

import (
	"math"
	"strings"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
)

// maxDurationGap is the average chat length difference at which the
// duration term reaches zero.
const maxDurationGap = 600.0

// Profile is the scoring view of one user. Metrics is nil for users who
// have not finished a chat yet.
type Profile struct {
	UserID    uint
	Interests []string
	Metrics   *models.InteractionMetrics
}

type Weights struct {
	Interest float64
	Time     float64
	Duration float64
}

func DefaultWeights() Weights {
	return Weights{Interest: 0.5, Time: 0.3, Duration: 0.2}
}

// WeightsFrom uses the algorithm row when present, otherwise fallback.
func WeightsFrom(alg *models.MatchingAlgorithm, fallback Weights) Weights {
	if alg == nil {
		return fallback
	}
	w := Weights{Interest: alg.InterestWeight, Time: alg.TimeWeight, Duration: alg.DurationWeight}
	if w.Interest < 0 || w.Time < 0 || w.Duration < 0 || w.Interest+w.Time+w.Duration == 0 {
		return fallback
	}
	return w
}

// Score returns the compatibility of a and b in [0,1]. Time-of-day and
// duration terms are only used when both users have metrics; the remaining
// terms are renormalized by the weight actually used.
func Score(a, b Profile, w Weights) float64 {
	var sum, used float64

	if w.Interest > 0 {
		sum += w.Interest * InterestSimilarity(a.Interests, b.Interests)
		used += w.Interest
	}

	if a.Metrics != nil && b.Metrics != nil {
		if w.Time > 0 {
			sum += w.Time * TimeSimilarity(a.Metrics.Hours(), b.Metrics.Hours())
			used += w.Time
		}
		if w.Duration > 0 {
			sum += w.Duration * DurationSimilarity(a.Metrics.AvgChatDurationSeconds, b.Metrics.AvgChatDurationSeconds)
			used += w.Duration
		}
	}

	if used == 0 {
		return 0
	}
	return clamp01(sum / used)
}

// InterestSimilarity is the Jaccard index of the two case-insensitive name
// sets, 0 when either is empty.
func InterestSimilarity(a, b []string) float64 {
	setA := nameSet(a)
	setB := nameSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for n := range setA {
		if _, ok := setB[n]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// TimeSimilarity is the cosine similarity of two time-of-day histograms,
// 0 when either has zero magnitude.
func TimeSimilarity(a, b [4]float64) float64 {
	var dot, na, nb float64
	for i := 0; i < 4; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func DurationSimilarity(a, b float64) float64 {
	return math.Max(0, 1-math.Abs(a-b)/maxDurationGap)
}

// Percent converts a score to the integer percentage shown to clients.
func Percent(score float64) int {
	return int(math.Round(clamp01(score) * 100))
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
