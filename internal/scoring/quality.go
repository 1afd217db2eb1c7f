package scoring

import (
	"math"
	"time"
)

// Sub-scores are on a 0-5 scale before the weighted average is rescaled.
const (
	qualityScale          = 5.0
	qualityDurationWeight = 0.4
	qualityCountWeight    = 0.3
	qualityBalanceWeight  = 0.3
	messagesPerPoint      = 4.0
)

// MatchQuality rates a finished chat in [0,1] from its length, how many
// messages were exchanged and how evenly both sides contributed.
func MatchQuality(duration time.Duration, countA, countB int) float64 {
	if duration < 0 {
		duration = 0
	}
	if countA < 0 {
		countA = 0
	}
	if countB < 0 {
		countB = 0
	}

	durationScore := math.Min(qualityScale, duration.Minutes())

	total := float64(countA + countB)
	countScore := math.Min(qualityScale, total/messagesPerPoint)

	balanceScore := 0.0
	if hi := math.Max(float64(countA), float64(countB)); hi > 0 {
		lo := math.Min(float64(countA), float64(countB))
		balanceScore = qualityScale * lo / hi
	}

	weighted := qualityDurationWeight*durationScore +
		qualityCountWeight*countScore +
		qualityBalanceWeight*balanceScore
	return clamp01(weighted / qualityScale)
}
