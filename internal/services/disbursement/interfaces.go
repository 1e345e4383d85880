package disbursement

import (
	"context"
	"time"

	"giveflow/internal/models"
	"giveflow/internal/providers"
)

// Repository is the persistence contract for disbursements.
type Repository interface {
	Create(ctx context.Context, d *models.Disbursement) error
	FindByID(ctx context.Context, id uint) (*models.Disbursement, error)
	FindByTransactionID(ctx context.Context, txID uint) (*models.Disbursement, error)
	FindByTransferRef(ctx context.Context, ref string) (*models.Disbursement, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Disbursement, error)
	UpdateWithAudit(ctx context.Context, d *models.Disbursement, event *models.AuditEvent) error
}

// Directory resolves organizations to payout destinations.
type Directory interface {
	FindByID(ctx context.Context, id uint) (*models.Organization, error)
}

// LedgerWriter mirrors disbursement outcomes onto the parent transaction.
// Only the ledger writes transaction rows.
type LedgerWriter interface {
	SetDisbursementStatus(ctx context.Context, reference, status string) error
}

// Notifier receives fire-and-forget payout notifications.
type Notifier interface {
	DisbursementCompleted(ctx context.Context, d *models.Disbursement)
	DisbursementFailed(ctx context.Context, d *models.Disbursement)
}

// Clock abstracts time for retry scheduling tests.
type Clock interface {
	Now() time.Time
}

// Service is the disbursement engine: it converts completed transactions
// into payouts with bounded automatic retry.
type Service interface {
	Schedule(ctx context.Context, tx models.Transaction) error
	Attempt(ctx context.Context, id uint) error
	Reconcile(ctx context.Context, ev providers.CallbackEvent) error
	Requeue(ctx context.Context, id uint, actor string) error
	GetForTransaction(ctx context.Context, txID uint) (*models.Disbursement, error)
	Due(ctx context.Context, limit int) ([]models.Disbursement, error)
}
