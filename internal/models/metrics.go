package models

import "time"

// Time-of-day buckets used by the preferred-hours histogram.
const (
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
	BucketNight     = "night"
)

// hourDecay is how much of the old histogram survives each recorded chat.
const hourDecay = 0.9

type InteractionMetrics struct {
	UserID                 uint      `gorm:"primaryKey"`
	TotalChats             int       `gorm:"not null;default:0"`
	AvgChatDurationSeconds float64   `gorm:"not null;default:0"`
	ChatAcceptRate         float64   `gorm:"not null;default:0"`
	MorningPref            float64   `gorm:"not null;default:0"`
	AfternoonPref          float64   `gorm:"not null;default:0"`
	EveningPref            float64   `gorm:"not null;default:0"`
	NightPref              float64   `gorm:"not null;default:0"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}

func (InteractionMetrics) TableName() string {
	return "interaction_metrics"
}

// Hours returns the histogram as a morning/afternoon/evening/night vector.
func (m *InteractionMetrics) Hours() [4]float64 {
	return [4]float64{m.MorningPref, m.AfternoonPref, m.EveningPref, m.NightPref}
}

// MetricsDelta is what a finished session contributes to one user's metrics.
type MetricsDelta struct {
	ChatDurationSeconds float64
	StartedAt           time.Time
}

// Apply folds one finished chat into the aggregate: total chat count, rolling
// average duration and a decayed time-of-day histogram nudged toward the
// bucket the chat started in.
func (m *InteractionMetrics) Apply(d MetricsDelta) {
	n := float64(m.TotalChats)
	m.AvgChatDurationSeconds = (m.AvgChatDurationSeconds*n + d.ChatDurationSeconds) / (n + 1)
	m.TotalChats++

	m.MorningPref *= hourDecay
	m.AfternoonPref *= hourDecay
	m.EveningPref *= hourDecay
	m.NightPref *= hourDecay

	bump := 1 - hourDecay
	switch HourBucket(d.StartedAt) {
	case BucketMorning:
		m.MorningPref += bump
	case BucketAfternoon:
		m.AfternoonPref += bump
	case BucketEvening:
		m.EveningPref += bump
	default:
		m.NightPref += bump
	}
}

// HourBucket maps a wall-clock time to its time-of-day bucket:
// 06-12 morning, 12-18 afternoon, 18-24 evening, 00-06 night.
func HourBucket(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 6 && h < 12:
		return BucketMorning
	case h >= 12 && h < 18:
		return BucketAfternoon
	case h >= 18:
		return BucketEvening
	default:
		return BucketNight
	}
}
