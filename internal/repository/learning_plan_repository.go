package repository

import (
	"context"

	"commsense_backend/internal/model"

	"gorm.io/gorm"
)

type LearningPlanRepository struct {
	DB *gorm.DB
}

func NewLearningPlanRepository(db *gorm.DB) *LearningPlanRepository {
	return &LearningPlanRepository{DB: db}
}

func (r *LearningPlanRepository) Create(ctx context.Context, plan *model.LearningPlan) error {
	return r.DB.WithContext(ctx).Create(plan).Error
}

func (r *LearningPlanRepository) ListByUser(ctx context.Context, userID uint) ([]model.LearningPlan, error) {
	var plans []model.LearningPlan
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&plans).Error
	return plans, err
}
