// Package store declares the persistence collaborators the matchmaking core
// depends on. The gorm implementation lives in internal/repositories; the
// in-memory implementation here backs tests and STORE_DRIVER=memory.
package store

import (
	"context"
	"time"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
)

type UserMetricsStore interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	IsBanned(ctx context.Context, userID uint) (bool, error)
	// GetInteractionMetrics returns nil, nil when the user has no metrics row yet.
	GetInteractionMetrics(ctx context.Context, userID uint) (*models.InteractionMetrics, error)
	UpdateInteractionMetrics(ctx context.Context, userID uint, delta models.MetricsDelta) error
	GetInterests(ctx context.Context, userID uint) ([]models.UserInterest, error)
	AdjustInterestWeight(ctx context.Context, userID uint, name string, delta float64) error
	BanUser(ctx context.Context, userID uint, reason string) error
	TouchLastMatched(ctx context.Context, userID uint, at time.Time) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	EndSession(ctx context.Context, session *models.ChatSession) error
	SaveMessage(ctx context.Context, msg *models.Message) error
}

type AlgorithmStore interface {
	// ActiveAlgorithm returns nil, nil when no row is active.
	ActiveAlgorithm(ctx context.Context) (*models.MatchingAlgorithm, error)
}

type AccountStore interface {
	FindOrCreateTelegramUser(ctx context.Context, telegramID int64, displayName string) (*models.User, error)
}

// Store is everything the server wires from one backend.
type Store interface {
	UserMetricsStore
	SessionStore
	AlgorithmStore
	AccountStore
}
