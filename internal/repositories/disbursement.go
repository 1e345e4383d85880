package repositories

import (
	"context"
	"time"

	"giveflow/internal/models"

	"gorm.io/gorm"
)

// DisbursementRepository persists disbursements. The (status, next_retry_at)
// index backs the retry dispatcher's due scan.
type DisbursementRepository struct {
	db *gorm.DB
}

func NewDisbursementRepository(db *gorm.DB) *DisbursementRepository {
	return &DisbursementRepository{db: db}
}

// Create inserts a disbursement. The unique index on transaction_id enforces
// the one-disbursement-per-transaction invariant; duplicates return
// gorm.ErrDuplicatedKey.
func (r *DisbursementRepository) Create(ctx context.Context, d *models.Disbursement) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DisbursementRepository) FindByID(ctx context.Context, id uint) (*models.Disbursement, error) {
	var d models.Disbursement
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisbursementRepository) FindByTransactionID(ctx context.Context, txID uint) (*models.Disbursement, error) {
	var d models.Disbursement
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", txID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByTransferRef looks up a disbursement by the provider-assigned transfer
// id, falling back to our own reference for providers that echo it instead.
func (r *DisbursementRepository) FindByTransferRef(ctx context.Context, ref string) (*models.Disbursement, error) {
	var d models.Disbursement
	err := r.db.WithContext(ctx).
		Where("transfer_id = ? OR reference = ?", ref, ref).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDue returns disbursements whose next attempt is due: freshly scheduled
// ones past their chargeback delay and failed ones past their backoff.
func (r *DisbursementRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Disbursement, error) {
	var due []models.Disbursement
	err := r.db.WithContext(ctx).
		Where("status IN ? AND next_retry_at <= ?",
			[]string{models.DisbursementStatusPending, models.DisbursementStatusPendingRetry}, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&due).Error
	return due, err
}

// UpdateWithAudit saves a disbursement and its correlated audit event in one
// database transaction.
func (r *DisbursementRepository) UpdateWithAudit(ctx context.Context, d *models.Disbursement, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := dbTx.Save(d).Error; err != nil {
			return err
		}
		if event != nil {
			if err := dbTx.Create(event).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
