package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{TransactionStatusPending, false},
		{TransactionStatusProcessing, false},
		{TransactionStatusCompleted, true},
		{TransactionStatusFailed, true},
		{TransactionStatusCancelled, true},
		{TransactionStatusRefunded, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			tx := Transaction{Status: tt.status}
			assert.Equal(t, tt.terminal, tx.IsTerminal())
		})
	}
}

func TestDisbursementIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		d        Disbursement
		terminal bool
	}{
		{"completed", Disbursement{Status: DisbursementStatusCompleted}, true},
		{"failed with retries left", Disbursement{Status: DisbursementStatusFailed, RetryCount: 1, MaxRetries: 3}, false},
		{"failed exhausted", Disbursement{Status: DisbursementStatusFailed, RetryCount: 3, MaxRetries: 3}, true},
		{"pending retry", Disbursement{Status: DisbursementStatusPendingRetry, RetryCount: 2, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.d.IsTerminal())
		})
	}
}

func TestPayoutDestination_PrefersBank(t *testing.T) {
	org := Organization{BankAccountNumber: "0011", MobileMoneyNumber: "+254700000001"}
	method, dest := org.PayoutDestination()
	assert.Equal(t, DisbursementMethodBank, method)
	assert.Equal(t, "0011", dest)

	org.BankAccountNumber = ""
	method, dest = org.PayoutDestination()
	assert.Equal(t, DisbursementMethodMobileMoney, method)
	assert.Equal(t, "+254700000001", dest)

	org.MobileMoneyNumber = ""
	method, _ = org.PayoutDestination()
	assert.Empty(t, method)
}

func TestRecurringPlanAdvance(t *testing.T) {
	base := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	weekly := RecurringPlan{Frequency: FrequencyWeekly}
	weekly.Advance(base)
	assert.Equal(t, base.AddDate(0, 0, 7), weekly.NextRunAt)

	monthly := RecurringPlan{Frequency: FrequencyMonthly}
	monthly.Advance(base)
	assert.Equal(t, base.AddDate(0, 1, 0), monthly.NextRunAt)

	yearly := RecurringPlan{Frequency: FrequencyYearly}
	yearly.Advance(base)
	assert.Equal(t, base.AddDate(1, 0, 0), yearly.NextRunAt)
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, HasCapability(RoleDonor, CapabilityPaymentInitiate))
	assert.False(t, HasCapability(RoleDonor, CapabilityDisbursementRequeue))
	assert.False(t, HasCapability(RoleOrgAdmin, CapabilityDisbursementRequeue))
	assert.False(t, HasCapability(RoleOrgAdmin, CapabilityPaymentRefund))
	assert.True(t, HasCapability(RoleOperator, CapabilityDisbursementRequeue))
	assert.True(t, HasCapability(RoleOperator, CapabilityPaymentRefund))

	assert.True(t, ValidRole(RoleOperator))
	assert.False(t, ValidRole(Role("superuser")))
}
