package repositories

import (
	"context"

	"giveflow/internal/models"

	"gorm.io/gorm"
)

// OrganizationRepository is the pipeline's view of the organization
// directory: payout destinations and fee-tier eligibility. Registration and
// verification live in a separate service.
type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}
