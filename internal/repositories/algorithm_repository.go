package repositories

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/internal/scoring"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

type AlgorithmRepository struct {
	db *gorm.DB
}

func NewAlgorithmRepository(db *gorm.DB) *AlgorithmRepository {
	return &AlgorithmRepository{db: db}
}

// ActiveAlgorithm returns the newest active scoring configuration, or nil
// when none is active.
func (r *AlgorithmRepository) ActiveAlgorithm(ctx context.Context) (*models.MatchingAlgorithm, error) {
	var alg models.MatchingAlgorithm
	result := r.db.WithContext(ctx).Where("active = ?", true).Order("id DESC").First(&alg)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get matching algorithm")
	}
	return &alg, nil
}

// Activate makes alg the only active algorithm, creating it when it has no ID.
func (r *AlgorithmRepository) Activate(ctx context.Context, alg *models.MatchingAlgorithm) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MatchingAlgorithm{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to deactivate algorithms")
		}
		alg.Active = true
		if err := tx.Save(alg).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to activate algorithm")
		}
		return nil
	})
}

// SeedDefault activates the given weights as the "default" algorithm when
// the table is empty. It reports whether a row was created.
func (r *AlgorithmRepository) SeedDefault(ctx context.Context, w scoring.Weights) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MatchingAlgorithm{}).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count matching algorithms")
	}
	if count > 0 {
		return false, nil
	}

	alg := &models.MatchingAlgorithm{
		Name:           "default",
		InterestWeight: w.Interest,
		TimeWeight:     w.Time,
		DurationWeight: w.Duration,
	}
	if err := r.Activate(ctx, alg); err != nil {
		return false, err
	}
	return true, nil
}
