package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession stores a new active chat session and fills in its ID.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create session")
	}
	return nil
}

// EndSession records how and when a session ended, with its quality score.
func (r *SessionRepository) EndSession(ctx context.Context, session *models.ChatSession) error {
	result := r.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"active":              false,
			"ended_at":            session.EndedAt,
			"end_reason":          session.EndReason,
			"match_quality_score": session.MatchQualityScore,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to end session")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "session not found")
	}
	return nil
}

// SaveMessage appends a message to its session.
func (r *SessionRepository) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save message")
	}
	return nil
}
