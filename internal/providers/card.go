package providers

import (
	"context"
	"encoding/json"

	"giveflow/internal/apperr"
	"giveflow/internal/config"
	"giveflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/transfer"
	"github.com/stripe/stripe-go/v72/webhook"
)

// CardAdapter integrates Stripe Checkout: synchronous redirect to a hosted
// page, asynchronous webhook result.
type CardAdapter struct {
	creds      config.ProviderCredentials
	successURL string
	cancelURL  string
}

func NewCardAdapter(creds config.ProviderCredentials, successURL, cancelURL string) *CardAdapter {
	stripe.Key = creds.APIKey
	return &CardAdapter{creds: creds, successURL: successURL, cancelURL: cancelURL}
}

func (a *CardAdapter) Name() string { return models.ProviderCard }

// Initiate creates a checkout session; the caller redirects the donor to it.
func (a *CardAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID:  stripe.String(req.Reference),
		CustomerEmail:      stripe.String(req.PayerContact),
		SuccessURL:         stripe.String(a.successURL),
		CancelURL:          stripe.String(a.cancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Donation"),
				},
			},
		}},
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, a.convertErr("initiate", err)
	}
	return &InitiateResult{ProviderSessionID: s.ID, RedirectURL: s.URL}, nil
}

// Verify retrieves the checkout session for reconciliation.
func (a *CardAdapter) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, a.convertErr("verify", err)
	}

	result := &VerifyResult{
		SettledAmount:   fromMinorUnits(s.AmountTotal),
		ProviderReceipt: s.ID,
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		result.Status = VerifyStatusSettled
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		result.Status = VerifyStatusPending
	default:
		result.Status = VerifyStatusPending
	}
	return result, nil
}

// Transfer moves net funds to the organization's connected account. Stripe's
// own idempotency key, set to our reference, prevents double-transfers.
func (a *CardAdapter) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.Reference),
		Description:   stripe.String(req.Reason),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.Reference)

	t, err := transfer.New(params)
	if err != nil {
		return nil, a.convertErr("transfer", err)
	}
	return &TransferResult{TransferID: t.ID}, nil
}

// ParseCallback verifies the Stripe-Signature header and normalizes the
// event. Fails closed on signature mismatch or malformed payload.
func (a *CardAdapter) ParseCallback(payload []byte, headers map[string]string) (*CallbackEvent, error) {
	event, err := webhook.ConstructEvent(payload, headers["Stripe-Signature"], a.creds.WebhookSecret)
	if err != nil {
		return &CallbackEvent{Valid: false}, nil
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return &CallbackEvent{Valid: false}, nil
		}
		return &CallbackEvent{
			Valid:             true,
			Type:              EventPaymentCompleted,
			ProviderReference: s.ID,
			ClientReference:   s.ClientReferenceID,
			Amount:            fromMinorUnits(s.AmountTotal),
			Receipt:           s.ID,
		}, nil
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return &CallbackEvent{Valid: false}, nil
		}
		return &CallbackEvent{
			Valid:             true,
			Type:              EventPaymentFailed,
			ProviderReference: s.ID,
			ClientReference:   s.ClientReferenceID,
			FailureReason:     string(event.Type),
		}, nil
	case "transfer.reversed":
		var t stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &t); err != nil {
			return &CallbackEvent{Valid: false}, nil
		}
		return &CallbackEvent{
			Valid:             true,
			Type:              EventTransferFailed,
			ProviderReference: t.ID,
			ClientReference:   t.TransferGroup,
			FailureReason:     "transfer reversed",
		}, nil
	case "transfer.created":
		var t stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &t); err != nil {
			return &CallbackEvent{Valid: false}, nil
		}
		return &CallbackEvent{
			Valid:             true,
			Type:              EventTransferCompleted,
			ProviderReference: t.ID,
			ClientReference:   t.TransferGroup,
			Receipt:           t.ID,
		}, nil
	}
	return &CallbackEvent{Valid: false}, nil
}

func (a *CardAdapter) convertErr(op string, err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		if stripeErr.HTTPStatusCode >= 500 {
			return apperr.Transport(a.Name(), op, err)
		}
		return apperr.Rejection(a.Name(), string(stripeErr.Code), stripeErr.Msg)
	}
	return apperr.Transport(a.Name(), op, err)
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
