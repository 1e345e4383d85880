package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment providers supported by the gateway adapters.
const (
	ProviderMobileMoney  = "mobile_money"
	ProviderCard         = "card"
	ProviderBankTransfer = "bank_transfer"
)

// Transaction statuses. Completed, failed, cancelled and refunded are terminal.
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
	TransactionStatusRefunded   = "refunded"
)

// Transaction is one donation attempt. It is owned by the ledger service;
// its status is mutated only through the ledger's guarded transitions.
type Transaction struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	Reference          string          `gorm:"uniqueIndex;not null" json:"reference"`
	ProviderReference  string          `gorm:"index" json:"provider_reference,omitempty"`
	Provider           string          `gorm:"not null" json:"provider"`
	Amount             decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency           string          `gorm:"type:char(3);not null" json:"currency"`
	Status             string          `gorm:"not null;default:'pending'" json:"status"`
	DisbursementStatus string          `json:"disbursement_status,omitempty"`
	PayerContact       string          `json:"payer_contact,omitempty"`
	Anonymous          bool            `json:"anonymous"`
	OrganizationID     uint            `gorm:"index;not null" json:"organization_id"`
	CategoryID         uint            `json:"category_id"`
	RefundAmount       decimal.Decimal `gorm:"type:numeric(20,4)" json:"refund_amount,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Metadata           JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	InitiatedAt        *time.Time      `json:"initiated_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the transaction has reached a state from which
// no further transition is permitted (refund of a completed transaction is
// handled as an explicit ledger operation, not a free transition).
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// SupportedProvider reports whether the given provider name is known.
func SupportedProvider(p string) bool {
	switch p {
	case ProviderMobileMoney, ProviderCard, ProviderBankTransfer:
		return true
	}
	return false
}
