package validation

import (
	"strings"
	"testing"

	"giveflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validInput() InitiationInput {
	return InitiationInput{
		Amount:         decimal.NewFromInt(500),
		Currency:       "KES",
		Provider:       models.ProviderMobileMoney,
		PayerContact:   "+254700000001",
		OrganizationID: 3,
	}
}

func TestInitiation_Valid(t *testing.T) {
	v := New()
	in := validInput()
	v.Initiation(&in)
	assert.True(t, v.Valid(), "errors: %v", v.Errors)
}

func TestInitiation_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InitiationInput)
		field  string
	}{
		{"zero amount", func(in *InitiationInput) { in.Amount = decimal.Zero }, "amount"},
		{"bad currency", func(in *InitiationInput) { in.Currency = "K3S" }, "currency"},
		{"unknown provider", func(in *InitiationInput) { in.Provider = "cheque" }, "provider"},
		{"missing organization", func(in *InitiationInput) { in.OrganizationID = 0 }, "organization_id"},
		{"missing contact", func(in *InitiationInput) { in.PayerContact = "" }, "payer_contact"},
		{"garbage contact", func(in *InitiationInput) { in.PayerContact = "not-a-contact" }, "payer_contact"},
		{"oversized client reference", func(in *InitiationInput) { in.ClientReference = strings.Repeat("r", 65) }, "client_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			in := validInput()
			tt.mutate(&in)
			v.Initiation(&in)
			assert.False(t, v.Valid())
			assert.Contains(t, v.Errors, tt.field)
		})
	}
}

func TestInitiation_NormalizesCurrencyCasing(t *testing.T) {
	v := New()
	in := validInput()
	in.Currency = " usd "
	v.Initiation(&in)
	assert.True(t, v.Valid(), "errors: %v", v.Errors)
	assert.Equal(t, "USD", in.Currency, "lowercase input must not persist")
}

func TestPlan_NormalizesCurrencyCasing(t *testing.T) {
	v := New()
	in := PlanInput{
		Amount:         decimal.NewFromInt(100),
		Currency:       "kes",
		Provider:       models.ProviderCard,
		PayerContact:   "donor@example.org",
		OrganizationID: 3,
		Frequency:      models.FrequencyMonthly,
	}
	v.Plan(&in)
	assert.True(t, v.Valid(), "errors: %v", v.Errors)
	assert.Equal(t, "KES", in.Currency)
}

func TestInitiation_AnonymousNeedsNoContact(t *testing.T) {
	v := New()
	in := validInput()
	in.Anonymous = true
	in.PayerContact = ""
	v.Initiation(&in)
	assert.True(t, v.Valid())
}

func TestInitiation_EmailContactAccepted(t *testing.T) {
	v := New()
	in := validInput()
	in.PayerContact = "donor@example.org"
	v.Initiation(&in)
	assert.True(t, v.Valid())
}
