package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Disbursement statuses. Completed is terminal; failed is terminal once the
// retry budget is exhausted.
const (
	DisbursementStatusPending      = "pending"
	DisbursementStatusProcessing   = "processing"
	DisbursementStatusCompleted    = "completed"
	DisbursementStatusFailed       = "failed"
	DisbursementStatusPendingRetry = "pending_retry"
)

// Disbursement methods, in payout preference order.
const (
	DisbursementMethodBank        = "bank_account"
	DisbursementMethodMobileMoney = "mobile_money"
)

// Disbursement is the payout of net funds to the receiving organization for
// one completed transaction. Owned by the disbursement engine.
type Disbursement struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	TransactionID  uint            `gorm:"uniqueIndex;not null" json:"transaction_id"`
	Reference      string          `gorm:"uniqueIndex;not null" json:"reference"`
	OrganizationID uint            `gorm:"index;not null" json:"organization_id"`
	GrossAmount    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"gross_amount"`
	PlatformFee    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"platform_fee"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"net_amount"`
	Currency       string          `gorm:"type:char(3);not null" json:"currency"`
	Method         string          `json:"method"`
	Destination    string          `json:"destination,omitempty"`
	TransferID     string          `gorm:"index" json:"transfer_id,omitempty"`
	Status         string          `gorm:"not null;default:'pending';index:idx_disb_retry" json:"status"`
	RetryCount     int             `gorm:"default:0" json:"retry_count"`
	MaxRetries     int             `gorm:"default:3" json:"max_retries"`
	NextRetryAt    *time.Time      `gorm:"index:idx_disb_retry" json:"next_retry_at,omitempty"`
	ErrorDetail    string          `json:"error_detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the disbursement can make no further progress.
// A failed disbursement with retries remaining is not terminal; the engine
// moves it to pending_retry.
func (d *Disbursement) IsTerminal() bool {
	switch d.Status {
	case DisbursementStatusCompleted:
		return true
	case DisbursementStatusFailed:
		return d.RetryCount >= d.MaxRetries
	}
	return false
}
