// Package validation provides request precondition checks for the HTTP
// surface.
package validation

import (
	"regexp"
	"strings"

	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validator accumulates field errors.
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error to the validator
func (v *Validator) AddError(field, message string) {
	v.Errors[field] = message
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// InitiationInput is the decoded initiation endpoint body.
type InitiationInput struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Provider        string          `json:"provider"`
	PayerContact    string          `json:"payer_contact"`
	Anonymous       bool            `json:"anonymous"`
	OrganizationID  uint            `json:"organization_id"`
	CategoryID      uint            `json:"category_id"`
	ClientReference string          `json:"client_reference"`
	Notes           string          `json:"notes"`
}

// Initiation validates the initiation request. The currency is normalized to
// uppercase in place; everything downstream stores the canonical form.
func (v *Validator) Initiation(in *InitiationInput) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	v.Check(in.Amount.GreaterThan(decimal.Zero), "amount", "must be greater than zero")
	v.Check(currencyRegex.MatchString(in.Currency), "currency", "must be a 3-letter code")
	v.Check(models.SupportedProvider(in.Provider), "provider", "is not supported")
	v.Check(in.OrganizationID != 0, "organization_id", "is required")
	if !in.Anonymous {
		v.Check(in.PayerContact != "", "payer_contact", "is required unless anonymous")
	}
	if in.PayerContact != "" {
		v.Check(phoneRegex.MatchString(in.PayerContact) || emailRegex.MatchString(in.PayerContact),
			"payer_contact", "must be a valid phone number or email")
	}
	v.Check(len(in.ClientReference) <= 64, "client_reference", "must not be more than 64 characters long")
}

// PlanInput is the decoded recurring-plan endpoint body.
type PlanInput struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Provider       string          `json:"provider"`
	PayerContact   string          `json:"payer_contact"`
	OrganizationID uint            `json:"organization_id"`
	CategoryID     uint            `json:"category_id"`
	Frequency      string          `json:"frequency"`
}

// Plan validates the recurring-plan creation request.
func (v *Validator) Plan(in *PlanInput) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	v.Check(in.Amount.GreaterThan(decimal.Zero), "amount", "must be greater than zero")
	v.Check(currencyRegex.MatchString(in.Currency), "currency", "must be a 3-letter code")
	v.Check(models.SupportedProvider(in.Provider), "provider", "is not supported")
	v.Check(in.OrganizationID != 0, "organization_id", "is required")
	v.Check(in.PayerContact != "", "payer_contact", "is required")
	if in.PayerContact != "" {
		v.Check(phoneRegex.MatchString(in.PayerContact) || emailRegex.MatchString(in.PayerContact),
			"payer_contact", "must be a valid phone number or email")
	}
	switch in.Frequency {
	case models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	default:
		v.AddError("frequency", "must be weekly, monthly or yearly")
	}
}
