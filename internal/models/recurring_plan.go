package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recurring plan frequencies.
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// Recurring plan statuses.
const (
	PlanStatusActive    = "active"
	PlanStatusCompleted = "completed"
	PlanStatusCancelled = "cancelled"
)

// RecurringPlan produces one transaction per period through the ledger's
// create contract until its end date or cancellation.
type RecurringPlan struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	PayerContact   string          `gorm:"not null" json:"payer_contact"`
	OrganizationID uint            `gorm:"index;not null" json:"organization_id"`
	CategoryID     uint            `json:"category_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency       string          `gorm:"type:char(3);not null" json:"currency"`
	Provider       string          `gorm:"not null" json:"provider"`
	Frequency      string          `gorm:"not null" json:"frequency"`
	Status         string          `gorm:"not null;default:'active';index:idx_plan_due" json:"status"`
	NextRunAt      time.Time       `gorm:"index:idx_plan_due" json:"next_run_at"`
	EndAt          *time.Time      `json:"end_at,omitempty"`
	RunCount       int             `gorm:"default:0" json:"run_count"`
	TotalGiven     decimal.Decimal `gorm:"type:numeric(20,4)" json:"total_given"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Advance moves NextRunAt forward one period from the given base time.
func (p *RecurringPlan) Advance(from time.Time) {
	switch p.Frequency {
	case FrequencyWeekly:
		p.NextRunAt = from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		p.NextRunAt = from.AddDate(0, 1, 0)
	case FrequencyYearly:
		p.NextRunAt = from.AddDate(1, 0, 0)
	}
}
