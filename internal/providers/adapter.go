// Package providers wraps each payment provider behind one capability set:
// initiate, verify, transfer, parse callback. The ledger and the disbursement
// engine depend only on this interface and never branch on provider type.
package providers

import (
	"context"

	"giveflow/internal/apperr"
	"giveflow/internal/models"

	"github.com/shopspring/decimal"
)

// Normalized callback event types.
const (
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
)

// Normalized verify statuses.
const (
	VerifyStatusPending = "pending"
	VerifyStatusSettled = "settled"
	VerifyStatusFailed  = "failed"
)

// InitiateRequest opens a payment session with a provider. The reference is
// the canonical transaction reference; adapters may truncate or map it for
// the provider's field limits, but the canonical value stays on the
// transaction.
type InitiateRequest struct {
	PayerContact string
	Amount       decimal.Decimal
	Currency     string
	Reference    string
	Metadata     map[string]string
}

type InitiateResult struct {
	ProviderSessionID string
	RedirectURL       string
}

type VerifyResult struct {
	Status          string
	SettledAmount   decimal.Decimal
	ProviderReceipt string
}

// TransferRequest moves funds out of the platform balance. Must be idempotent
// keyed on Reference: calling twice with the same reference never
// double-transfers.
type TransferRequest struct {
	Destination string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Reason      string
}

type TransferResult struct {
	TransferID string
}

// CallbackEvent is a validated, normalized provider notification. Valid is
// false on any signature mismatch or malformed payload; callers take no side
// effect on an invalid event.
type CallbackEvent struct {
	Valid             bool
	Type              string
	ProviderReference string
	ClientReference   string
	Amount            decimal.Decimal
	Receipt           string
	FailureReason     string
}

// Adapter is the uniform provider interface.
type Adapter interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, providerSessionID string) (*VerifyResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	ParseCallback(payload []byte, headers map[string]string) (*CallbackEvent, error)
}

// Registry maps provider names to adapter instances.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok || !models.SupportedProvider(provider) {
		return nil, apperr.Validation("provider", "unsupported provider "+provider)
	}
	return a, nil
}
