package repositories

import (
	"gorm.io/gorm"

	"github.com/omis-2025/strangerwave-sub000/internal/store"
)

// Store backs every core collaborator with one gorm connection.
type Store struct {
	*UserRepository
	*SessionRepository
	*AlgorithmRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		UserRepository:      NewUserRepository(db),
		SessionRepository:   NewSessionRepository(db),
		AlgorithmRepository: NewAlgorithmRepository(db),
	}
}

var _ store.Store = (*Store)(nil)
