// Package repositories implements internal/interfaces/repository against Postgres via
// GORM, following the teacher's one-file-per-aggregate repository split
// (internal/repositories/agent_repository.go).
package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"raptor/internal/models"
)

// UserRepository is the read path for user/wallet/settings/strategy configuration —
// all owned by the excluded settings-CRUD surface, never written here.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetActiveWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *UserRepository) GetSettings(ctx context.Context, userID uint) (*models.Settings, error) {
	var s models.Settings
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Defaults mirror the column defaults declared on models.Settings so a user
			// who never touched settings still gets sane, conservative trading limits.
			return &models.Settings{
				UserID:           userID,
				SlippageBps:      500,
				MaxPositions:     5,
				MaxTradesPerHour: 20,
				MaxBuyAmountSOL:  0.5,
				AllowlistMode:    models.AllowlistOff,
			}, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *UserRepository) ListArmedStrategies(ctx context.Context, chain string) ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := r.db.WithContext(ctx).
		Where("chain = ? AND enabled = ?", chain, true).
		Find(&strategies).Error
	return strategies, err
}
