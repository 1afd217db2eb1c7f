package repositories

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, userID)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

func (r *UserRepository) IsBanned(ctx context.Context, userID uint) (bool, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsBanned, nil
}

// FindOrCreateTelegramUser maps a Telegram account to a chat user, creating
// the user on first contact.
func (r *UserRepository) FindOrCreateTelegramUser(ctx context.Context, telegramID int64, displayName string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Attrs(models.User{TelegramID: &telegramID, DisplayName: displayName}).
		FirstOrCreate(&user)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to find or create user")
	}
	return &user, nil
}

// BanUser marks a user as banned
func (r *UserRepository) BanUser(ctx context.Context, userID uint, reason string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_banned":  true,
		"ban_reason": reason,
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to ban user")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "user not found")
	}
	return nil
}

func (r *UserRepository) TouchLastMatched(ctx context.Context, userID uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_matched_at", at)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update last match time")
	}
	return nil
}

// GetInteractionMetrics returns nil, nil when the user has never finished a chat.
func (r *UserRepository) GetInteractionMetrics(ctx context.Context, userID uint) (*models.InteractionMetrics, error) {
	var m models.InteractionMetrics
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get interaction metrics")
	}
	return &m, nil
}

// UpdateInteractionMetrics folds one finished chat into the user's metrics
// row under a row lock.
func (r *UserRepository) UpdateInteractionMetrics(ctx context.Context, userID uint, delta models.MetricsDelta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.InteractionMetrics
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&m).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			m = models.InteractionMetrics{UserID: userID}
			m.Apply(delta)
			if err := tx.Create(&m).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create interaction metrics")
			}
			return nil
		case err != nil:
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock interaction metrics")
		}

		m.Apply(delta)
		if err := tx.Save(&m).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update interaction metrics")
		}
		return nil
	})
}

// GetInterests returns the user's interests in insertion order.
func (r *UserRepository) GetInterests(ctx context.Context, userID uint) ([]models.UserInterest, error) {
	var interests []models.UserInterest
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&interests).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get interests")
	}
	return interests, nil
}

// AdjustInterestWeight adds delta to an interest's weight, creating the
// interest when the user has not mentioned it before. Weights stay in [0,5].
func (r *UserRepository) AdjustInterestWeight(ctx context.Context, userID uint, name string, delta float64) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New(errors.ErrCodeValidation, "interest name is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var interest models.UserInterest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND name = ?", userID, name).
			First(&interest).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			interest = models.UserInterest{UserID: userID, Name: name, Weight: delta}
			if err := tx.Create(&interest).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create interest")
			}
			return nil
		case err != nil:
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock interest")
		}

		interest.Weight += delta
		if err := tx.Save(&interest).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update interest")
		}
		return nil
	})
}
