package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID                uint       `gorm:"primaryKey"`
	TelegramID        *int64     `gorm:"uniqueIndex"`
	DisplayName       string     `gorm:"type:varchar(100)"`
	Gender            string     `gorm:"type:varchar(10);index"`
	Country           string     `gorm:"type:varchar(2);index"`
	PreferredLanguage string     `gorm:"type:varchar(8)"`
	IsBanned          bool       `gorm:"default:false;not null;index"`
	BanReason         string     `gorm:"type:varchar(255)"`
	LastMatchedAt     *time.Time `gorm:"index"`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`

	Interests []UserInterest `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Requested gender constants
const (
	RequestedGenderMale   = "male"
	RequestedGenderFemale = "female"
	RequestedGenderAny    = "any"
)

// BeforeSave normalizes free-text profile fields and rejects unknown genders.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Gender = strings.ToLower(strings.TrimSpace(u.Gender))
	if u.Gender != "" && u.Gender != GenderMale && u.Gender != GenderFemale {
		return gorm.ErrInvalidData
	}

	u.Country = NormalizeCountry(u.Country)
	u.PreferredLanguage = strings.ToLower(strings.TrimSpace(u.PreferredLanguage))
	return nil
}

func (User) TableName() string {
	return "users"
}

// NormalizeCountry upper-cases and trims an ISO country code.
func NormalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// NormalizeRequestedGender maps empty or unknown input to "any".
func NormalizeRequestedGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case RequestedGenderMale:
		return RequestedGenderMale
	case RequestedGenderFemale:
		return RequestedGenderFemale
	default:
		return RequestedGenderAny
	}
}

// Interest weight bounds
const (
	MinInterestWeight = 0.0
	MaxInterestWeight = 5.0
)

type UserInterest struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index:idx_user_interest,unique"`
	Name      string    `gorm:"type:varchar(64);not null;index:idx_user_interest,unique"`
	Weight    float64   `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserInterest) TableName() string {
	return "user_interests"
}

// BeforeSave keeps names case-insensitive and weights inside [0,5].
func (i *UserInterest) BeforeSave(tx *gorm.DB) error {
	i.Name = strings.ToLower(strings.TrimSpace(i.Name))
	if i.Name == "" {
		return gorm.ErrInvalidData
	}
	i.Weight = ClampWeight(i.Weight)
	return nil
}

func ClampWeight(w float64) float64 {
	if w < MinInterestWeight {
		return MinInterestWeight
	}
	if w > MaxInterestWeight {
		return MaxInterestWeight
	}
	return w
}
