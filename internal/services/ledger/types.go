package ledger

import (
	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

// Domain event names published by the ledger.
const (
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
)

// CreateRequest holds the validated input for a new transaction. Reference is
// the idempotency key; when empty the ledger assigns one.
type CreateRequest struct {
	Reference      string
	Amount         decimal.Decimal
	Currency       string
	Provider       string
	PayerContact   string
	Anonymous      bool
	OrganizationID uint
	CategoryID     uint
	Notes          string
	Metadata       models.JSON
}
