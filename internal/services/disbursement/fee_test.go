package disbursement

import (
	"testing"

	"giveflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeSchedule_MobileMoneyTiers(t *testing.T) {
	fees := NewFeeSchedule(2.5)

	tests := []struct {
		name   string
		amount decimal.Decimal
		want   decimal.Decimal
	}{
		{"bottom band", decimal.NewFromInt(50), decimal.NewFromInt(2)},
		{"band boundary inclusive", decimal.NewFromInt(100), decimal.NewFromInt(2)},
		{"second band", decimal.NewFromInt(500), decimal.NewFromInt(11)},
		{"third band", decimal.NewFromInt(750), decimal.NewFromInt(15)},
		{"top band", decimal.NewFromInt(5000), decimal.NewFromInt(40)},
		{"above top band pays 1%", decimal.NewFromInt(10000), decimal.NewFromInt(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fees.Fee(tt.amount, models.ProviderMobileMoney)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestFeeSchedule_Card(t *testing.T) {
	fees := NewFeeSchedule(2.5)

	// 2.5% of 1000 + 0.30 fixed
	got := fees.Fee(decimal.NewFromInt(1000), models.ProviderCard)
	assert.True(t, decimal.NewFromFloat(25.30).Equal(got), "got %s", got)
}

func TestFeeSchedule_BankTransfer(t *testing.T) {
	fees := NewFeeSchedule(2.5)

	got := fees.Fee(decimal.NewFromInt(2000), models.ProviderBankTransfer)
	assert.True(t, decimal.NewFromInt(20).Equal(got), "got %s", got)
}

func TestFeeSchedule_NetNeverNegative(t *testing.T) {
	fees := NewFeeSchedule(2.5)

	amounts := []decimal.Decimal{
		decimal.NewFromFloat(0.01),
		decimal.NewFromFloat(0.10),
		decimal.NewFromInt(1),
		decimal.NewFromInt(99),
		decimal.NewFromInt(100),
		decimal.NewFromInt(101),
		decimal.NewFromInt(500),
		decimal.NewFromInt(5000),
		decimal.NewFromInt(5001),
		decimal.NewFromInt(1000000),
	}
	providerNames := []string{
		models.ProviderMobileMoney,
		models.ProviderCard,
		models.ProviderBankTransfer,
	}

	for _, provider := range providerNames {
		for _, amount := range amounts {
			fee := fees.Fee(amount, provider)
			net := fees.Net(amount, provider)

			assert.False(t, fee.IsNegative(), "%s fee for %s is negative", provider, amount)
			assert.False(t, net.IsNegative(), "%s net for %s is negative", provider, amount)
			assert.True(t, amount.Equal(fee.Add(net)), "%s fee+net != amount for %s", provider, amount)
		}
	}
}

func TestFeeSchedule_ZeroAmount(t *testing.T) {
	fees := NewFeeSchedule(2.5)
	assert.True(t, fees.Fee(decimal.Zero, models.ProviderCard).IsZero())
}

func TestFeeSchedule_PartnerTier(t *testing.T) {
	fees := NewFeeSchedule(2.5)
	amount := decimal.NewFromInt(500)

	standard := fees.FeeForTier(amount, models.ProviderMobileMoney, models.FeeTierStandard)
	partner := fees.FeeForTier(amount, models.ProviderMobileMoney, models.FeeTierPartner)

	assert.True(t, standard.Equal(decimal.NewFromInt(11)))
	assert.True(t, partner.Equal(decimal.NewFromFloat(5.5)))
}
