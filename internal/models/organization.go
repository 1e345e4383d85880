package models

import "time"

// Organization fee tiers. Partner organizations pay a reduced platform fee
// on every disbursement.
type FeeTier string

const (
	FeeTierStandard FeeTier = "standard"
	FeeTierPartner  FeeTier = "partner"
)

// Organization is the receiving side of a donation. Registry and verification
// workflows live in a separate service; this model carries only what the
// disbursement engine needs to pay the organization out.
type Organization struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	BankAccountNumber string    `json:"bank_account_number,omitempty"`
	BankCode          string    `json:"bank_code,omitempty"`
	MobileMoneyNumber string    `json:"mobile_money_number,omitempty"`
	FeeTier           FeeTier   `gorm:"default:'standard'" json:"fee_tier"`
	Active            bool      `gorm:"default:true" json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PayoutDestination resolves the configured payout target, preferring a bank
// account over a mobile-money number. Returns empty method when neither is set.
func (o *Organization) PayoutDestination() (method, destination string) {
	if o.BankAccountNumber != "" {
		return DisbursementMethodBank, o.BankAccountNumber
	}
	if o.MobileMoneyNumber != "" {
		return DisbursementMethodMobileMoney, o.MobileMoneyNumber
	}
	return "", ""
}
