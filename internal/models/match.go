package models

import (
	"time"
)

type ChatSession struct {
	ID                uint       `gorm:"primaryKey"`
	UserAID           uint       `gorm:"not null;index"`
	UserBID           uint       `gorm:"not null;index"`
	StartedAt         time.Time  `gorm:"not null;index"`
	EndedAt           *time.Time `gorm:"index"`
	Active            bool       `gorm:"not null;default:true;index"`
	MatchScore        float64    `gorm:"not null;default:0"`
	MatchQualityScore *float64
	AlgorithmID       *uint     `gorm:"index"`
	EndReason         string    `gorm:"type:varchar(20)"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// PartnerOf returns the other participant, or 0 when userID is not part of
// the session.
func (s *ChatSession) PartnerOf(userID uint) uint {
	switch userID {
	case s.UserAID:
		return s.UserBID
	case s.UserBID:
		return s.UserAID
	}
	return 0
}

// Duration is the session length; zero while the session is still active.
func (s *ChatSession) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

type Message struct {
	ID                uint      `gorm:"primaryKey"`
	SessionID         uint      `gorm:"not null;index"`
	SenderID          uint      `gorm:"not null;index"`
	Content           string    `gorm:"type:text;not null"`
	DetectedLanguage  string    `gorm:"type:varchar(8)"`
	IsTranslated      bool      `gorm:"not null;default:false"`
	OriginalContent   *string   `gorm:"type:text"`
	TranslatedContent *string   `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null;index"`
}

func (Message) TableName() string {
	return "messages"
}

// MatchingAlgorithm is the runtime-tunable weight set for compatibility
// scoring. At most one row is expected to be active.
type MatchingAlgorithm struct {
	ID             uint      `gorm:"primaryKey"`
	Name           string    `gorm:"type:varchar(64);not null"`
	Active         bool      `gorm:"not null;default:false;index"`
	InterestWeight float64   `gorm:"not null;default:0.5"`
	TimeWeight     float64   `gorm:"not null;default:0.3"`
	DurationWeight float64   `gorm:"not null;default:0.2"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (MatchingAlgorithm) TableName() string {
	return "matching_algorithms"
}
