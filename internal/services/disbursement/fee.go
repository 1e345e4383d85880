package disbursement

import (
	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

// feeBand is one row of the mobile-money tier table: a flat fee for amounts
// up to and including the band ceiling.
type feeBand struct {
	UpTo decimal.Decimal
	Fee  decimal.Decimal
}

// Mobile-money disbursement tiers. Amounts above the last ceiling pay a
// percentage instead.
var momoBands = []feeBand{
	{UpTo: decimal.NewFromInt(100), Fee: decimal.NewFromInt(2)},
	{UpTo: decimal.NewFromInt(500), Fee: decimal.NewFromInt(11)},
	{UpTo: decimal.NewFromInt(1000), Fee: decimal.NewFromInt(15)},
	{UpTo: decimal.NewFromInt(5000), Fee: decimal.NewFromInt(40)},
}

var (
	momoOverflowPct   = decimal.NewFromFloat(0.01) // 1% above the top band
	cardFixedFee      = decimal.NewFromFloat(0.30)
	bankFlatPct       = decimal.NewFromFloat(0.01)
	partnerMultiplier = decimal.NewFromFloat(0.5)
	hundred           = decimal.NewFromInt(100)
)

// FeeSchedule computes the platform fee as a pure function of amount and
// provider. One fee model applies per provider: mobile money uses the tier
// table, card uses the configured percentage plus a fixed fee, bank transfer
// uses a flat percentage.
type FeeSchedule struct {
	cardPct decimal.Decimal
}

func NewFeeSchedule(platformFeePercentage float64) *FeeSchedule {
	return &FeeSchedule{cardPct: decimal.NewFromFloat(platformFeePercentage).Div(hundred)}
}

// Fee returns the platform fee for one gross amount. The result is never
// negative and never exceeds the amount, so the net payout stays >= 0.
func (f *FeeSchedule) Fee(amount decimal.Decimal, provider string) decimal.Decimal {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	var fee decimal.Decimal
	switch provider {
	case models.ProviderMobileMoney:
		fee = momoFee(amount)
	case models.ProviderCard:
		fee = amount.Mul(f.cardPct).Add(cardFixedFee)
	case models.ProviderBankTransfer:
		fee = amount.Mul(bankFlatPct)
	default:
		fee = amount.Mul(f.cardPct)
	}

	fee = fee.Round(4)
	if fee.GreaterThan(amount) {
		return amount
	}
	return fee
}

// FeeForTier applies the organization's pricing tier on top of the provider
// fee model. Partner organizations pay half the standard platform fee.
func (f *FeeSchedule) FeeForTier(amount decimal.Decimal, provider string, tier models.FeeTier) decimal.Decimal {
	fee := f.Fee(amount, provider)
	if tier == models.FeeTierPartner {
		fee = fee.Mul(partnerMultiplier).Round(4)
	}
	return fee
}

// Net returns amount minus fee.
func (f *FeeSchedule) Net(amount decimal.Decimal, provider string) decimal.Decimal {
	return amount.Sub(f.Fee(amount, provider))
}

func momoFee(amount decimal.Decimal) decimal.Decimal {
	for _, band := range momoBands {
		if amount.LessThanOrEqual(band.UpTo) {
			return band.Fee
		}
	}
	return amount.Mul(momoOverflowPct)
}
