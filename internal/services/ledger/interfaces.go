package ledger

import (
	"context"

	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

// Repository is the persistence contract the ledger needs. UpdateWithAudit
// must write the transaction and the audit event atomically.
type Repository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindByProviderReference(ctx context.Context, providerRef string) (*models.Transaction, error)
	UpdateWithAudit(ctx context.Context, tx *models.Transaction, event *models.AuditEvent) error
}

// Publisher delivers domain events to background consumers.
type Publisher interface {
	Publish(ctx context.Context, name string, tx models.Transaction)
}

// Service is the single source of truth for transaction state. No other
// component writes transaction status.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*models.Transaction, error)
	Get(ctx context.Context, reference string) (*models.Transaction, error)
	Find(ctx context.Context, reference string) (*models.Transaction, error)

	MarkProcessing(ctx context.Context, reference, providerSessionID string) error
	MarkCompleted(ctx context.Context, reference, providerReceipt string) (bool, error)
	MarkFailed(ctx context.Context, reference, reason string) (bool, error)
	MarkCancelled(ctx context.Context, reference, reason string) error
	MarkRefunded(ctx context.Context, reference string, refundAmount decimal.Decimal, reason string) error

	SetDisbursementStatus(ctx context.Context, reference, status string) error
}
