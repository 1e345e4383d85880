package repositories

import (
	"context"
	"time"

	"giveflow/internal/models"

	"gorm.io/gorm"
)

// RecurringPlanRepository persists recurring giving plans.
type RecurringPlanRepository struct {
	db *gorm.DB
}

func NewRecurringPlanRepository(db *gorm.DB) *RecurringPlanRepository {
	return &RecurringPlanRepository{db: db}
}

func (r *RecurringPlanRepository) Create(ctx context.Context, plan *models.RecurringPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *RecurringPlanRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringPlan, error) {
	var due []models.RecurringPlan
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", models.PlanStatusActive, now).
		Order("next_run_at").
		Limit(limit).
		Find(&due).Error
	return due, err
}

func (r *RecurringPlanRepository) Save(ctx context.Context, plan *models.RecurringPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}
