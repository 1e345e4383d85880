package repositories

import (
	"context"
	"time"

	"giveflow/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository persists transactions and their audit trail.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction. Returns gorm.ErrDuplicatedKey when the
// reference already exists; callers treat the reference as the idempotency key.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) FindByProviderReference(ctx context.Context, providerRef string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).Where("provider_reference = ?", providerRef).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindStaleProcessing returns transactions still processing after the
// callback window lapsed, oldest first. Only acknowledged transactions
// qualify; without a provider reference there is no session to verify.
func (r *TransactionRepository) FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND provider_reference <> '' AND initiated_at <= ?",
			models.TransactionStatusProcessing, cutoff).
		Order("initiated_at asc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// UpdateWithAudit saves a transaction and appends the correlated audit event
// in one database transaction, so a crash cannot leave one without the other.
func (r *TransactionRepository) UpdateWithAudit(ctx context.Context, tx *models.Transaction, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := dbTx.Save(tx).Error; err != nil {
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
